package steps

import (
	"regexp"
	"strings"
)

var simplifiedGroup = regexp.MustCompile(`\([^)]*\)`)

// CompilePattern converts a driver-declared step pattern into an anchored,
// case-insensitive regular expression.
//
// Two pattern dialects are accepted:
//   - A pattern containing a backslash is assumed to be raw regex and is
//     used verbatim.
//   - Otherwise each parenthesized group, placeholder names included, is
//     rewritten to a non-greedy capture group. Text outside groups passes
//     through unescaped, so quotes and plain words match literally.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	expr := pattern
	if !strings.Contains(pattern, `\`) {
		expr = simplifiedGroup.ReplaceAllString(pattern, "(.+?)")
	}
	return regexp.Compile("(?i)^" + expr + "$")
}
