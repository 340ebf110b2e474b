package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdownText_StripsFormatting(t *testing.T) {
	source := []byte("# Heading\n\nSome **bold** and *italic* text.\n\n- first\n- second\n")
	text := MarkdownText(source)
	require.Contains(t, text, "Heading")
	require.Contains(t, text, "Some bold and italic text.")
	require.Contains(t, text, "first")
	require.Contains(t, text, "second")
	require.NotContains(t, text, "**")
	require.NotContains(t, text, "#")
}

func TestMarkdownText_KeepsCodeBlockContents(t *testing.T) {
	source := []byte("Intro\n\n```go\nfmt.Println(\"hi\")\n```\n")
	text := MarkdownText(source)
	require.Contains(t, text, `fmt.Println("hi")`)
	require.NotContains(t, text, "```")
}

func TestMarkdownText_Empty(t *testing.T) {
	require.Equal(t, "", MarkdownText(nil))
	require.Equal(t, "", MarkdownText([]byte("   \n\n")))
}

func TestPreview_TruncatesRuneSafe(t *testing.T) {
	require.Equal(t, "héllo", Preview("  héllo  ", 10))
	require.Equal(t, "hél", Preview("héllo", 3))
	require.Equal(t, "", Preview("", 5))
}

func TestSupportedExt(t *testing.T) {
	require.True(t, SupportedExt("notes.md"))
	require.True(t, SupportedExt("Book.EPUB"))
	require.True(t, SupportedExt("paper.pdf"))
	require.False(t, SupportedExt("image.png"))
	require.False(t, SupportedExt("archive.tar.gz"))
}

func TestText_UnsupportedType(t *testing.T) {
	_, err := Text("image.png", []byte("data"))
	require.Error(t, err)
}

func TestText_PDFPlaceholder(t *testing.T) {
	text, err := Text("paper.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	require.Contains(t, text, "paper.pdf")
}
