package steps

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompilePattern(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		pattern  string
		text     string
		match    bool
		captures []string
	}{
		{
			name:     "simplified placeholders become non-greedy captures",
			pattern:  `I create file "(filename)" with content "(content)"`,
			text:     `I create file "a.txt" with content "hi"`,
			match:    true,
			captures: []string{"a.txt", "hi"},
		},
		{
			name:     "placeholder values can contain spaces",
			pattern:  `I type "(text)"`,
			text:     `I type "hello brave new world"`,
			match:    true,
			captures: []string{"hello brave new world"},
		},
		{
			name:    "matching is case-insensitive",
			pattern: `I Click The Button`,
			text:    `i click the button`,
			match:   true,
		},
		{
			name:    "match is anchored at both ends",
			pattern: `I click the button`,
			text:    `and then I click the button twice`,
			match:   false,
		},
		{
			name:     "pattern with backslash is raw regex used verbatim",
			pattern:  `I wait (\d+) seconds`,
			text:     `I wait 15 seconds`,
			match:    true,
			captures: []string{"15"},
		},
		{
			name:    "raw regex does not match non-conforming text",
			pattern: `I wait (\d+) seconds`,
			text:    `I wait some seconds`,
			match:   false,
		},
		{
			name:     "empty placeholder group still captures",
			pattern:  `the title is "(title)"`,
			text:     `the title is "Dashboard"`,
			match:    true,
			captures: []string{"Dashboard"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			re, err := CompilePattern(tc.pattern)
			require.NoError(t, err)

			groups := re.FindStringSubmatch(tc.text)
			if !tc.match {
				require.Nil(t, groups)
				return
			}

			require.NotNil(t, groups)
			require.Equal(t, tc.captures, captured(groups))
		})
	}
}

func TestCompilePatternInvalidRegex(t *testing.T) {
	t.Parallel()

	_, err := CompilePattern(`I wait (\d+ seconds`)
	require.Error(t, err)
}

func captured(groups []string) []string {
	if len(groups) <= 1 {
		return nil
	}
	return groups[1:]
}
