package chunk

import (
	"context"
	"regexp"
	"strings"
)

var (
	// Matches headings: # Title through ###### Title.
	headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

	// Matches YAML frontmatter at the top of the document.
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n?`)
)

// markdownStrategy splits structured documents at heading boundaries.
// Each fragment is a heading plus its body up to the next heading of any
// level. Frontmatter becomes its own fragment; content before the first
// heading is carried as text. Oversized sections are kept whole.
type markdownStrategy struct{}

func (s *markdownStrategy) split(_ context.Context, content string) ([]fragment, error) {
	var frags []fragment
	lineOffset := 0

	if m := frontmatterPattern.FindString(content); m != "" {
		frags = append(frags, fragment{
			text:      strings.TrimRight(m, "\n"),
			chunkType: TypeFrontmatter,
			startLine: 1,
			endLine:   strings.Count(m, "\n"),
		})
		lineOffset = strings.Count(m, "\n")
		content = content[len(m):]
	}

	lines := strings.Split(content, "\n")

	type section struct {
		title     string
		startLine int // 0-indexed within content
		endLine   int
		lines     []string
	}

	var sections []*section
	current := &section{startLine: 0}

	for i, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			current.endLine = i - 1
			sections = append(sections, current)
			current = &section{
				title:     strings.TrimSpace(m[2]),
				startLine: i,
			}
		}
		current.lines = append(current.lines, line)
	}
	current.endLine = len(lines) - 1
	sections = append(sections, current)

	for _, sec := range sections {
		text := strings.TrimSpace(strings.Join(sec.lines, "\n"))
		if text == "" {
			continue
		}
		chunkType := TypeSection
		if sec.title == "" {
			// Preamble before the first heading.
			chunkType = TypeText
		}
		frags = append(frags, fragment{
			text:      text,
			chunkType: chunkType,
			startLine: lineOffset + sec.startLine + 1,
			endLine:   lineOffset + sec.endLine + 1,
			title:     sec.title,
		})
	}

	return frags, nil
}
