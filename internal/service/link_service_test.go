package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWikiLinks(t *testing.T) {
	content := `
See [[Project Notes]] and [[Reading List]].
Mentioned again: [[Project Notes]].
Not a link: [single bracket] and [[ ]].
Trailing [[  Spaced Title  ]] gets trimmed.
`
	titles := parseWikiLinks(content)
	require.Equal(t, []string{"Project Notes", "Reading List", "Spaced Title"}, titles)
}

func TestParseWikiLinks_Empty(t *testing.T) {
	require.Empty(t, parseWikiLinks(""))
	require.Empty(t, parseWikiLinks("plain text with no references"))
}

func TestParseWikiLinks_CaseSensitive(t *testing.T) {
	titles := parseWikiLinks("[[Alpha]] [[alpha]]")
	require.Equal(t, []string{"Alpha", "alpha"}, titles)
}
