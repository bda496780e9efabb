package chunk

import (
	"context"
	"fmt"
	"strings"
)

// codeStrategy splits source code at top-level structural boundaries
// (functions, methods, classes, type declarations) using a tree-sitter
// parse. Content between symbols (package clauses, imports, top-level
// variables) is carried as text fragments so the whole file stays
// retrievable. Oversized symbols are kept whole; only the generic text
// fallback splits inside a structure.
type codeStrategy struct {
	language string
	parser   *parser
	registry *languageRegistry
}

func (s *codeStrategy) split(ctx context.Context, content string) ([]fragment, error) {
	source := []byte(content)
	root, err := s.parser.parse(ctx, source, s.language)
	if err != nil {
		return nil, err
	}

	cfg, ok := s.registry.config(s.language)
	if !ok {
		return nil, fmt.Errorf("no language config for %s", s.language)
	}

	var frags []fragment
	var pendingComments []*node
	var leftover []*node

	flushLeftover := func() {
		if len(leftover) == 0 {
			return
		}
		first, last := leftover[0], leftover[len(leftover)-1]
		text := strings.TrimSpace(string(source[first.startByte:last.endByte]))
		if text != "" {
			frags = append(frags, fragment{
				text:      text,
				chunkType: TypeText,
				startLine: int(first.startRow) + 1,
				endLine:   int(last.endRow) + 1,
			})
		}
		leftover = leftover[:0]
	}

	for _, child := range root.children {
		if child.nodeType == "comment" {
			pendingComments = append(pendingComments, child)
			continue
		}

		chunkType, isSymbol := cfg.symbolTypes[child.nodeType]
		if !isSymbol {
			leftover = append(leftover, pendingComments...)
			leftover = append(leftover, child)
			pendingComments = pendingComments[:0]
			continue
		}

		flushLeftover()

		// Attach doc comments that sit directly above the symbol.
		start := child
		if len(pendingComments) > 0 {
			last := pendingComments[len(pendingComments)-1]
			if int(child.startRow)-int(last.endRow) <= 1 {
				start = pendingComments[0]
			} else {
				leftover = append(leftover, pendingComments...)
				flushLeftover()
			}
			pendingComments = pendingComments[:0]
		}

		frags = append(frags, fragment{
			text:      string(source[start.startByte:child.endByte]),
			chunkType: chunkType,
			startLine: int(start.startRow) + 1,
			endLine:   int(child.endRow) + 1,
			title:     extractName(child, source, cfg),
		})
	}

	leftover = append(leftover, pendingComments...)
	flushLeftover()

	return frags, nil
}

// extractName finds the symbol name by searching the configured child
// node types. Go type declarations nest the name one level down inside a
// type_spec.
func extractName(n *node, source []byte, cfg *languageConfig) string {
	for _, childType := range cfg.nameChildTypes {
		child := n.findChildByType(childType)
		if child == nil {
			continue
		}
		if childType == "type_spec" {
			if inner := child.findChildByType("type_identifier"); inner != nil {
				return inner.content(source)
			}
			continue
		}
		return child.content(source)
	}
	return ""
}
