// Package content renders chat domain objects for the terminal: messages with
// highlighted code fences, server cards, and channel lists.
package content

import (
	"strings"
)

// SegmentKind distinguishes prose from fenced code inside a message.
type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentCode
)

// Segment is one run of a message body.
type Segment struct {
	Kind     SegmentKind
	Language string
	Text     string
}

// Lines returns the number of lines in the segment.
func (s Segment) Lines() int {
	if s.Text == "" {
		return 0
	}
	return strings.Count(s.Text, "\n") + 1
}

// ParseSegments splits content on ``` fences. An unterminated fence runs to
// the end of the message. Empty text runs between fences are dropped.
func ParseSegments(content string) []Segment {
	var (
		segments []Segment
		buf      []string
		inCode   bool
		lang     string
	)

	flush := func(kind SegmentKind) {
		text := strings.Join(buf, "\n")
		buf = buf[:0]
		if kind == SegmentText {
			text = strings.Trim(text, "\n")
			if strings.TrimSpace(text) == "" {
				return
			}
		}
		segments = append(segments, Segment{Kind: kind, Language: lang, Text: text})
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inCode {
				flush(SegmentCode)
				inCode, lang = false, ""
				continue
			}
			flush(SegmentText)
			inCode = true
			lang = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
			continue
		}
		buf = append(buf, line)
	}

	if inCode {
		flush(SegmentCode)
	} else {
		flush(SegmentText)
	}
	return segments
}
