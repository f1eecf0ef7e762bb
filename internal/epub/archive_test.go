package epub

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/leaflet/internal/epub/epubtest"
)

func TestOpenArchive(t *testing.T) {
	data := epubtest.Minimal(t)

	a, err := OpenArchive(data)
	require.NoError(t, err)

	assert.Equal(t, 4, a.Len())
	assert.Equal(t, []string{"META-INF/container.xml", "chapter1.xhtml", "content.opf", "mimetype"}, a.Names())
	assert.Equal(t, data, a.Bytes())
}

func TestOpenArchiveCorrupt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not a zip file")},
		{"truncated", epubtest.Minimal(t)[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenArchive(tt.data)
			assert.ErrorIs(t, err, ErrCorruptArchive)
		})
	}
}

func TestArchiveEntryLookup(t *testing.T) {
	a, err := OpenArchive(epubtest.Minimal(t))
	require.NoError(t, err)

	_, ok := a.Entry("content.opf")
	assert.True(t, ok)

	// Lookup is exact and case-sensitive.
	_, ok = a.Entry("Content.opf")
	assert.False(t, ok)
	_, ok = a.Entry("/content.opf")
	assert.False(t, ok)
}

func TestArchiveRequire(t *testing.T) {
	data := epubtest.Build(t, epubtest.Text("content.opf", epubtest.MinimalPackage))
	a, err := OpenArchive(data)
	require.NoError(t, err)

	_, err = a.Require(ContainerPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredEntry)

	var missing *MissingRequiredEntryError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, ContainerPath, missing.Path)
	assert.Equal(t, "missing required entry: META-INF/container.xml", err.Error())
}

func TestArchiveRead(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x01}
	data := epubtest.Build(t,
		epubtest.Text("text.xhtml", "\ufeff<p>café</p>"),
		epubtest.Stored("img.png", png),
	)
	a, err := OpenArchive(data)
	require.NoError(t, err)

	text, _ := a.Entry("text.xhtml")
	s, err := a.ReadText(text, "")
	require.NoError(t, err)
	assert.Equal(t, "<p>café</p>", s, "BOM is stripped")

	_, err = a.ReadText(text, "no-such-charset")
	assert.Error(t, err)

	img, _ := a.Entry("img.png")
	b, err := a.ReadBytes(img)
	require.NoError(t, err)
	assert.Equal(t, png, b)

	raw, err := a.ReadRaw(img)
	require.NoError(t, err)
	assert.Equal(t, png, raw, "stored entries are their own raw form")

	content, err := a.ReadContent(img)
	require.NoError(t, err)
	assert.Equal(t, png, content)

	rawText, err := a.ReadRaw(text)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("\ufeff<p>café</p>"), rawText, "deflated entries come back compressed")
}

func TestArchiveReadTextUTF16(t *testing.T) {
	// "<a/>" as UTF-16LE with BOM.
	body := []byte{0xff, 0xfe, '<', 0, 'a', 0, '/', 0, '>', 0}
	a, err := OpenArchive(epubtest.Build(t, epubtest.Stored("doc.xml", body)))
	require.NoError(t, err)

	f, _ := a.Entry("doc.xml")
	s, err := a.ReadText(f, "utf-8")
	require.NoError(t, err)
	assert.Equal(t, "<a/>", s)
}
