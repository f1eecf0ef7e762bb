package epub

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/leaflet/internal/epub/epubtest"
)

const fullPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="pub-id">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:opf="http://www.idpf.org/2007/opf">
    <dc:identifier id="isbn">978-0000000000</dc:identifier>
    <dc:identifier id="pub-id"> urn:uuid:1234 </dc:identifier>
    <dc:title>A Book</dc:title>
    <dc:title>Subtitle</dc:title>
    <dc:language>fr</dc:language>
    <dc:creator id="a1">First Author</dc:creator>
    <dc:creator opf:role="aut">Second Author</dc:creator>
    <meta refines="#a1" property="role">aut</meta>
    <meta name="cover" content="img-legacy"/>
  </metadata>
  <manifest>
    <item id="nav" href="nav.xhtml" media-type="application/xhtml+xml" properties="nav"/>
    <item id="toc" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
    <item id="cover" href="images/cover.jpg" media-type="image/jpeg" properties="cover-image"/>
    <item id="img-legacy" href="images/other.png" media-type="image/png"/>
    <item id="c1" href="text/chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="c2" href="text/chapter%202.xhtml" media-type="application/xhtml+xml"/>
    <item id="notes" href="text/notes.xhtml" media-type="application/xhtml+xml"/>
  </manifest>
  <spine toc="toc">
    <itemref idref="c1"/>
    <itemref idref="notes" linear="no"/>
    <itemref idref="missing"/>
    <itemref idref="c2" linear="yes"/>
  </spine>
</package>`

func TestParsePackage(t *testing.T) {
	pkg, err := ParsePackage(fullPackage, "OEBPS/content.opf")
	require.NoError(t, err)

	assert.Equal(t, "OEBPS/content.opf", pkg.Path)
	assert.Equal(t, "A Book", pkg.Title)
	assert.Equal(t, "fr", pkg.Language)
	assert.Equal(t, "urn:uuid:1234", pkg.Identifier)
	assert.Equal(t, "3.0", pkg.Version)
	assert.Equal(t, []string{"First Author", "Second Author"}, pkg.Authors)

	nav, ok := pkg.Contents()
	require.True(t, ok)
	assert.Equal(t, "OEBPS/nav.xhtml", nav.URL)

	cover, ok := pkg.CoverResource()
	require.True(t, ok)
	assert.Equal(t, "OEBPS/images/cover.jpg", cover.URL)

	toc := pkg.Resources[1]
	assert.Equal(t, "OEBPS/toc.ncx", toc.URL)
	assert.Equal(t, []string{RelNCX}, toc.Rel)
}

func TestParsePackageResourceList(t *testing.T) {
	pkg, err := ParsePackage(fullPackage, "OEBPS/content.opf")
	require.NoError(t, err)

	require.Len(t, pkg.Manifest(), 7)
	require.Len(t, pkg.Resources, 9)

	alternates := pkg.Resources[7:]
	assert.Equal(t, Resource{URL: OriginalName, Rel: []string{RelAlternate}, EncodingFormat: MediaTypeEPUB}, alternates[0])
	assert.Equal(t, Resource{URL: "OEBPS/content.opf", Rel: []string{RelAlternate}, EncodingFormat: MediaTypePackage}, alternates[1])

	raw, err := json.Marshal(pkg.Resources)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, r := range decoded {
		assert.NotContains(t, r, "id")
		assert.Contains(t, r, "url")
		assert.Contains(t, r, "encodingFormat")
	}
}

func TestParsePackageReadingOrder(t *testing.T) {
	pkg, err := ParsePackage(fullPackage, "OEBPS/content.opf")
	require.NoError(t, err)

	require.Len(t, pkg.ReadingOrder, 2)
	assert.Equal(t, "OEBPS/text/chapter1.xhtml", pkg.ReadingOrder[0].URL)
	assert.Equal(t, "OEBPS/text/chapter 2.xhtml", pkg.ReadingOrder[1].URL)

	for _, ro := range pkg.ReadingOrder {
		matches := 0
		for _, r := range pkg.Manifest() {
			if r.URL == ro.URL && r.EncodingFormat == ro.EncodingFormat {
				matches++
			}
		}
		assert.Equal(t, 1, matches, ro.URL)
		assert.NotEqual(t, "OEBPS/text/notes.xhtml", ro.URL)
	}
}

func TestParsePackageCoverFallback(t *testing.T) {
	legacy := `<package version="2.0" unique-identifier="id">
  <metadata>
    <meta name="cover" content="img2"/>
  </metadata>
  <manifest>
    <item id="img1" href="a.png" media-type="image/png"/>
    <item id="img2" href="b.png" media-type="image/png"/>
  </manifest>
  <spine/>
</package>`

	pkg, err := ParsePackage(legacy, "content.opf")
	require.NoError(t, err)

	cover, ok := pkg.CoverResource()
	require.True(t, ok)
	assert.Equal(t, "b.png", cover.URL)
	assert.Empty(t, pkg.Identifier, "unique-identifier pointing nowhere")
}

func TestParsePackageCoverFallbackIdempotent(t *testing.T) {
	pkg, err := ParsePackage(fullPackage, "OEBPS/content.opf")
	require.NoError(t, err)

	covers := 0
	for _, r := range pkg.Resources {
		if r.Has(RelCover) {
			covers++
			assert.Equal(t, "OEBPS/images/cover.jpg", r.URL)
		}
	}
	assert.Equal(t, 1, covers)
}

func TestParsePackageOptionalMetadata(t *testing.T) {
	doc := `<package><manifest><item id="x" href="x.html" media-type="text/html"/></manifest><spine><itemref idref="x"/></spine></package>`

	pkg, err := ParsePackage(doc, "content.opf")
	require.NoError(t, err)
	assert.Empty(t, pkg.Title)
	assert.Empty(t, pkg.Language)
	assert.Empty(t, pkg.Identifier)
	assert.Empty(t, pkg.Version)
	assert.Empty(t, pkg.Authors)
	assert.Len(t, pkg.ReadingOrder, 1)
}

func TestParsePackageErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    error
		element string
	}{
		{"malformed", `<package><manifest>`, ErrMalformedPackageDocument, ""},
		{"mismatched tags", `<package><spine></package>`, ErrMalformedPackageDocument, ""},
		{"empty", ``, ErrMissingRequiredElement, "package"},
		{"wrong root", `<container><spine/></container>`, ErrMissingRequiredElement, "package"},
		{"no spine", `<package><manifest/></package>`, ErrMissingRequiredElement, "spine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePackage(tt.doc, "content.opf")
			require.ErrorIs(t, err, tt.want)

			if tt.element != "" {
				var missing *MissingRequiredElementError
				require.True(t, errors.As(err, &missing))
				assert.Equal(t, tt.element, missing.Element)
			}
		})
	}
}

func TestParseMinimalPackage(t *testing.T) {
	pkg, err := ParsePackage(epubtest.MinimalPackage, "content.opf")
	require.NoError(t, err)

	assert.Len(t, pkg.ReadingOrder, 1)
	assert.Len(t, pkg.Resources, 3)
	assert.Equal(t, Resource{URL: "chapter1.xhtml", EncodingFormat: "text/html"}, pkg.ReadingOrder[0])
	assert.Equal(t, "urn:uuid:0b7a7a6e-1c5e-4f0e-9d0a-5a4c3e2f1d00", pkg.Identifier)
}
