package parse

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoData is returned when the text contains neither a recognized tag line
// nor a structured-data block. Callers must treat this as a skip, not a
// processing failure.
var ErrNoData = eris.New("parse: no recognizable data")

// StructuredDataSentinel marks the start of the trailing machine-readable
// block. Everything after it is parsed as JSON and overlaid on the
// tag-derived fields.
const StructuredDataSentinel = "=== STRUCTURED DATA ==="

var (
	tagLine   = regexp.MustCompile(`^#([A-Za-z][A-Za-z0-9_-]*):\s*(.*)$`)
	markupTag = regexp.MustCompile(`<[^>]+>`)
)

// blockParser consumes a sub-block starting at lines[start] and returns the
// index of the first unconsumed line. Each parser stops at the next
// top-level "#" line or end of text.
type blockParser func(env *Envelope, lines []string, start int) int

// blockParsers is the closed table of known sub-block keys. Unknown keys
// fall through to plain field storage.
var blockParsers = map[string]blockParser{
	"tasks":         parseTasks,
	"checklists":    parseChecklists,
	"estimateItems": parseLineItems,
	"resources":     parseResources,
}

// Parse scans plain text for the tag grammar and the optional structured
// data block. It returns ErrNoData when neither produced anything.
func Parse(text string) (*Envelope, error) {
	env := &Envelope{Fields: make(map[string]string)}

	clean := markupTag.ReplaceAllString(text, "")
	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	lines := strings.Split(clean, "\n")

	matched := false
	for i := 0; i < len(lines); {
		line := strings.TrimSpace(lines[i])

		if line == StructuredDataSentinel {
			if applyOverlay(env, strings.Join(lines[i+1:], "\n")) {
				matched = true
			}
			break
		}

		m := tagLine.FindStringSubmatch(line)
		if m == nil {
			i++
			continue
		}
		key, value := m[1], strings.TrimSpace(m[2])

		if sub, ok := blockParsers[key]; ok {
			matched = true
			i = sub(env, lines, i+1)
			continue
		}

		env.Fields[key] = value
		matched = true
		i++
	}

	if !matched {
		return nil, ErrNoData
	}
	return env, nil
}

// isBlockEnd reports whether a line terminates the current sub-block. The
// structured data sentinel ends a block too; the outer loop must see it so
// the overlay still applies when a block runs right up to it.
func isBlockEnd(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "#") || line == StructuredDataSentinel
}
