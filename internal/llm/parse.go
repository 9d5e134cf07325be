package llm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/pythautom/pythautom/internal/fence"
)

// DependencySchema is the JSON schema both backends request for dependency
// identification replies.
const DependencySchema = `{"type":"object","properties":{"dependencies":{"type":"array","items":{"type":"string"}}},"required":["dependencies"]}`

// ParseDependencies extracts the package list from a model reply. It accepts
// {"dependencies": [...]}, a bare JSON array, or either wrapped in prose or a
// code fence. Unparseable replies yield a single ErrorMarker entry.
func ParseDependencies(reply string) []string {
	raw := fence.Extract(reply)
	if raw == "" {
		return []string{ErrorMarker + " empty dependency reply"}
	}

	if gjson.Valid(raw) {
		doc := gjson.Parse(raw)
		switch {
		case doc.IsObject() && doc.Get("dependencies").IsArray():
			return stringArray(doc.Get("dependencies"))
		case doc.IsArray():
			return stringArray(doc)
		}
	}

	// Fall back to the first bracketed list anywhere in the reply.
	if start := strings.IndexByte(raw, '['); start >= 0 {
		if end := strings.IndexByte(raw[start:], ']'); end >= 0 {
			candidate := raw[start : start+end+1]
			if gjson.Valid(candidate) {
				return stringArray(gjson.Parse(candidate))
			}
		}
	}
	return []string{fmt.Sprintf("%s could not parse dependency reply: %s", ErrorMarker, truncate(raw, 100))}
}

func stringArray(arr gjson.Result) []string {
	var out []string
	for _, item := range arr.Array() {
		if item.Type != gjson.String {
			continue
		}
		if name := strings.TrimSpace(item.String()); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// SplitDependencies separates package names from ErrorMarker entries. Names
// come back sorted and de-duplicated.
func SplitDependencies(entries []string) (names, failures []string) {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case strings.HasPrefix(e, ErrorMarker):
			failures = append(failures, e)
		default:
			names = append(names, e)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), failures
}

// ParseResolution interprets a package resolution reply. Empty answers,
// UNKNOWN and anything containing whitespace count as unresolved.
func ParseResolution(module, reply string) Resolution {
	answer := strings.Trim(strings.TrimSpace(fence.Extract(reply)), "`'\"")
	res := Resolution{Module: module}
	switch {
	case answer == "":
		res.Reason = "empty answer"
	case strings.EqualFold(answer, "UNKNOWN"):
		res.Reason = "model does not know a package for this module"
	case strings.ContainsAny(answer, " \t\r\n"):
		res.Reason = fmt.Sprintf("answer is not a package name: %s", truncate(answer, 60))
	default:
		res.Package = answer
	}
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
