package chunk

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

// parser wraps tree-sitter for AST parsing. tree-sitter parsers are not
// safe for concurrent use, so Parse serializes callers.
type parser struct {
	mu       sync.Mutex
	parser   *sitter.Parser
	registry *languageRegistry
}

func newParser(registry *languageRegistry) *parser {
	return &parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// parse parses source code and returns the root node of the AST.
func (p *parser) parse(ctx context.Context, source []byte, language string) (*node, error) {
	tsLang, ok := p.registry.treeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse source: nil tree")
	}
	defer tree.Close()

	root := convertNode(tree.RootNode())
	if root == nil {
		return nil, fmt.Errorf("parse source: empty tree")
	}
	if root.hasError {
		return nil, fmt.Errorf("parse source: syntax errors")
	}
	return root, nil
}

func (p *parser) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.parser != nil {
		p.parser.Close()
	}
}

// node is a detached copy of a tree-sitter node, safe to use after the
// underlying tree is closed.
type node struct {
	nodeType  string
	startByte uint32
	endByte   uint32
	startRow  uint32 // 0-indexed
	endRow    uint32
	hasError  bool
	children  []*node
}

func convertNode(tsNode *sitter.Node) *node {
	if tsNode == nil {
		return nil
	}

	n := &node{
		nodeType:  tsNode.Type(),
		startByte: tsNode.StartByte(),
		endByte:   tsNode.EndByte(),
		startRow:  tsNode.StartPoint().Row,
		endRow:    tsNode.EndPoint().Row,
		hasError:  tsNode.HasError(),
		children:  make([]*node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			n.children = append(n.children, convertNode(child))
		}
	}
	return n
}

// content returns the source text covered by the node.
func (n *node) content(source []byte) string {
	if n.startByte >= n.endByte || int(n.endByte) > len(source) {
		return ""
	}
	return string(source[n.startByte:n.endByte])
}

// findChildByType returns the first direct child with the given type.
func (n *node) findChildByType(nodeType string) *node {
	for _, child := range n.children {
		if child.nodeType == nodeType {
			return child
		}
	}
	return nil
}
