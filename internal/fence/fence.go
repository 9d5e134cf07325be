// Package fence pulls bare source code out of model replies that wrap it in
// Markdown code fences.
package fence

import (
	"regexp"
	"strings"
)

const marker = "```"

var (
	// infoString matches an optional language tag ending the opening fence line.
	infoString = regexp.MustCompile(`^[A-Za-z0-9_+.\-]*[ \t]*\r?\n`)
	codeStart  = regexp.MustCompile(`^(import|from|def|class|#|\s)`)
)

// Extract returns the contents of the last complete fenced block in text. If
// there is none, the trimmed text is returned as is. Extract is idempotent.
func Extract(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	if body, ok := lastBlock(trimmed); ok {
		return body
	}
	return trimmed
}

// LooksLikeCode reports whether text starts the way Python source usually does.
func LooksLikeCode(text string) bool {
	return codeStart.MatchString(text)
}

// lastBlock pairs fence markers in order of appearance and returns the body of
// the last pair. An unmatched trailing marker (a truncated stream) is ignored.
func lastBlock(text string) (string, bool) {
	var positions []int
	for off := 0; ; {
		i := strings.Index(text[off:], marker)
		if i < 0 {
			break
		}
		positions = append(positions, off+i)
		off += i + len(marker)
	}
	if len(positions) < 2 {
		return "", false
	}

	pairs := len(positions) / 2
	open, closing := positions[2*pairs-2], positions[2*pairs-1]
	body := text[open+len(marker) : closing]
	if loc := infoString.FindStringIndex(body); loc != nil {
		body = body[loc[1]:]
	}
	return strings.TrimSpace(body), true
}
