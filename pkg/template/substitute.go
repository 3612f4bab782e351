// substitute.go: ${var} placeholder substitution for job documents.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Policy selects how missing variables are handled.
type Policy int

const (
	// PolicyDropLines removes every line that references a missing variable.
	PolicyDropLines Policy = iota
	// PolicyReplace substitutes known variables and leaves the rest verbatim.
	PolicyReplace
)

// ParsePolicy reads "drop_lines" or "replace"; anything else is drop_lines.
func ParsePolicy(s string) Policy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return PolicyReplace
	default:
		return PolicyDropLines
	}
}

func (p Policy) String() string {
	if p == PolicyReplace {
		return "replace"
	}
	return "drop_lines"
}

// lookup returns the formatted value of name. Absent keys and nil values
// are missing.
func lookup(vars map[string]any, name string) (string, bool) {
	v, ok := vars[name]
	if !ok || v == nil {
		return "", false
	}
	switch val := v.(type) {
	case string:
		return val, true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// Substitute replaces each ${name} whose variable is set and leaves the
// other placeholders untouched.
func Substitute(s string, vars map[string]any) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(match string) string {
		if v, ok := lookup(vars, match[2:len(match)-1]); ok {
			return v
		}
		return match
	})
}

// SubstituteLines substitutes line by line. A line referencing any missing
// variable is dropped whole; a single-line input then becomes "".
func SubstituteLines(s string, vars map[string]any) string {
	if !strings.Contains(s, "${") {
		return s
	}

	lines := strings.Split(s, "\n")
	kept := lines[:0:0]
	for _, line := range lines {
		missing := false
		for _, m := range placeholder.FindAllStringSubmatch(line, -1) {
			if _, ok := lookup(vars, m[1]); !ok {
				missing = true
				break
			}
		}
		if missing {
			continue
		}
		kept = append(kept, Substitute(line, vars))
	}
	return strings.Join(kept, "\n")
}

// SubstituteDocument returns a copy of a decoded document with every string
// value substituted under policy. Maps and slices are copied, never
// modified in place; keys are left alone.
func SubstituteDocument(doc any, vars map[string]any, policy Policy) any {
	switch v := doc.(type) {
	case string:
		if policy == PolicyReplace {
			return Substitute(v, vars)
		}
		return SubstituteLines(v, vars)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = SubstituteDocument(item, vars, policy)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SubstituteDocument(item, vars, policy)
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = SubstituteDocument(item, vars, policy)
		}
		return out
	default:
		return v
	}
}
