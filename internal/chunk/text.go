package chunk

import (
	"context"
	"strings"
	"unicode"
)

// textStrategy is the generic fallback: sentence-boundary splitting with
// greedy packing up to maxSize. Unlike the structural strategies it does
// split oversized content, hard-wrapping sentences longer than maxSize.
type textStrategy struct {
	maxSize int
}

// sentence is a span of the original content.
type span struct {
	start int
	end   int
}

func (s *textStrategy) split(_ context.Context, content string) ([]fragment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	sentences := splitSentences(content)

	var frags []fragment
	packStart := -1
	packEnd := 0

	flush := func() {
		if packStart < 0 {
			return
		}
		text := strings.TrimSpace(content[packStart:packEnd])
		if text != "" {
			frags = append(frags, fragment{
				text:      text,
				chunkType: TypeText,
				startLine: 1 + strings.Count(content[:packStart], "\n"),
				endLine:   1 + strings.Count(content[:packEnd], "\n"),
			})
		}
		packStart = -1
	}

	for _, sent := range sentences {
		length := sent.end - sent.start

		// A single sentence over the limit gets hard-wrapped.
		if length > s.maxSize {
			flush()
			for off := sent.start; off < sent.end; off += s.maxSize {
				end := off + s.maxSize
				if end > sent.end {
					end = sent.end
				}
				text := strings.TrimSpace(content[off:end])
				if text == "" {
					continue
				}
				frags = append(frags, fragment{
					text:      text,
					chunkType: TypeText,
					startLine: 1 + strings.Count(content[:off], "\n"),
					endLine:   1 + strings.Count(content[:end], "\n"),
				})
			}
			continue
		}

		if packStart >= 0 && sent.end-packStart > s.maxSize {
			flush()
		}
		if packStart < 0 {
			packStart = sent.start
		}
		packEnd = sent.end
	}
	flush()

	return frags, nil
}

// splitSentences finds sentence spans. A boundary is a terminator
// (. ! ?) followed by whitespace, or a blank line.
func splitSentences(content string) []span {
	var spans []span
	start := 0

	runes := []rune(content)
	offsets := make([]int, len(runes)+1)
	off := 0
	for i, r := range runes {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[len(runes)] = off

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		isTerminator := (r == '.' || r == '!' || r == '?') &&
			i+1 < len(runes) && unicode.IsSpace(runes[i+1])

		isParagraphBreak := r == '\n' && i+1 < len(runes) && runes[i+1] == '\n'

		if isTerminator || isParagraphBreak {
			end := offsets[i+1]
			if end > start {
				spans = append(spans, span{start: start, end: end})
			}
			start = end
		}
	}
	if offsets[len(runes)] > start {
		spans = append(spans, span{start: start, end: offsets[len(runes)]})
	}

	return spans
}
