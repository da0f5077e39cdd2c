// Package config handles YAML config file loading for hbframe run.
package config

import (
	"os"
	"regexp"
	"strings"
)

// envRef matches ${NAME}, ${NAME:-fallback} and the escaped form $${...}.
var envRef = regexp.MustCompile(`\$?\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*)?\}`)

// ExpandEnv substitutes environment references in a config document.
//
//	${NAME}            value of NAME, or "" when unset
//	${NAME:-fallback}  value of NAME, or fallback when unset or empty
//	$${NAME}           literal ${NAME}
//
// A missing variable is not an error here; fields that need a value fail
// in their own validation.
func ExpandEnv(input string) string {
	var out strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(input, -1) {
		out.WriteString(input[last:m[0]])
		last = m[1]

		ref := input[m[0]:m[1]]
		if strings.HasPrefix(ref, "$$") {
			out.WriteString(ref[1:])
			continue
		}
		name := input[m[2]:m[3]]
		if v := os.Getenv(name); v != "" {
			out.WriteString(v)
		} else if m[4] >= 0 {
			out.WriteString(input[m[4]+2 : m[5]])
		}
	}
	out.WriteString(input[last:])
	return out.String()
}
