package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/leaflet/internal/epub"
	"github.com/timmy/leaflet/internal/epub/epubtest"
	"github.com/timmy/leaflet/internal/logger"
)

func TestOrchestratorIngestMinimal(t *testing.T) {
	o := NewOrchestrator(logger.NewDefault())

	graph, media, archive, err := o.Ingest(context.Background(), epubtest.Minimal(t), "pub-1", "reader-1")
	require.NoError(t, err)
	require.NotNil(t, archive)

	pub := graph.Publication
	assert.Equal(t, "pub-1", pub.ID)
	assert.Equal(t, "reader-1", pub.ReaderID)
	assert.Equal(t, "Minimal", pub.Title)
	assert.Equal(t, "en", pub.Language)
	assert.Equal(t, []string{"Jane Doe"}, []string(pub.Authors))
	assert.Len(t, pub.ReadingOrder, 1)
	assert.Len(t, pub.Resources, 3)
	assert.Equal(t, "content.opf", graph.Package.Path)

	require.Len(t, media, 1)
	assert.Equal(t, MediaEntry{Path: "chapter1.xhtml", MediaType: "text/html", Metadata: map[string]string{}}, media[0])
}

func TestOrchestratorIngestNestedPackage(t *testing.T) {
	opf := `<package version="3.0"><manifest>
  <item id="c" href="text/ch%201.xhtml" media-type="application/xhtml+xml"/>
  <item id="img" href="../images/cover.png" media-type="image/png" properties="cover-image"/>
</manifest><spine><itemref idref="c"/></spine></package>`
	data := epubtest.Build(t,
		epubtest.Text(epub.ContainerPath, epubtest.Container("OEBPS/content.opf")),
		epubtest.Text("OEBPS/content.opf", opf),
		epubtest.Text("OEBPS/text/ch 1.xhtml", epubtest.Chapter),
	)

	graph, media, _, err := NewOrchestrator(nil).Ingest(context.Background(), data, "pub", "reader")
	require.NoError(t, err)

	require.Len(t, media, 2)
	assert.Equal(t, "OEBPS/text/ch 1.xhtml", media[0].Path)
	assert.Equal(t, "images/cover.png", media[1].Path)
	cover, ok := graph.Publication.Cover()
	require.True(t, ok)
	assert.Equal(t, "images/cover.png", cover.URL)
}

func TestOrchestratorIngestErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{
			name: "not a zip",
			data: []byte("plain text"),
			want: epub.ErrCorruptArchive,
		},
		{
			name: "missing container",
			data: epubtest.Build(t, epubtest.Text("content.opf", epubtest.MinimalPackage)),
			want: epub.ErrMissingRequiredEntry,
		},
		{
			name: "container without rootfile",
			data: epubtest.Build(t, epubtest.Text(epub.ContainerPath, `<container><rootfiles/></container>`)),
			want: epub.ErrMissingPackageDocument,
		},
		{
			name: "package document absent",
			data: epubtest.Build(t, epubtest.Text(epub.ContainerPath, epubtest.Container("content.opf"))),
			want: epub.ErrMissingRequiredEntry,
		},
		{
			name: "malformed package",
			data: epubtest.Build(t,
				epubtest.Text(epub.ContainerPath, epubtest.Container("content.opf")),
				epubtest.Text("content.opf", "<package><spine>"),
			),
			want: epub.ErrMalformedPackageDocument,
		},
		{
			name: "no spine",
			data: epubtest.Build(t,
				epubtest.Text(epub.ContainerPath, epubtest.Container("content.opf")),
				epubtest.Text("content.opf", "<package><manifest/></package>"),
			),
			want: epub.ErrMissingRequiredElement,
		},
	}

	o := NewOrchestrator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := o.Ingest(context.Background(), tt.data, "pub", "reader")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindInput, KindOf(err))
		})
	}
}

func TestOrchestratorMissingContainerMessage(t *testing.T) {
	data := epubtest.Build(t, epubtest.Text("content.opf", epubtest.MinimalPackage))

	_, _, _, err := NewOrchestrator(nil).Ingest(context.Background(), data, "pub", "reader")
	require.Error(t, err)
	assert.Equal(t, "missing required entry: META-INF/container.xml", err.Error())
}

func TestOrchestratorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err := NewOrchestrator(nil).Ingest(ctx, epubtest.Minimal(t), "pub", "reader")
	assert.ErrorIs(t, err, context.Canceled)
}
