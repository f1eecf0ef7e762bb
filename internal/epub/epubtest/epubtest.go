// Package epubtest builds small EPUB archives for tests.
package epubtest

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/klauspost/compress/zip"
)

// File is one archive entry.
type File struct {
	Name   string
	Body   []byte
	Stored bool
	Raw    bool // Body is written as an already-deflated stream
}

// Text returns a deflated entry.
func Text(name, body string) File {
	return File{Name: name, Body: []byte(body)}
}

// Stored returns an uncompressed entry.
func Stored(name string, body []byte) File {
	return File{Name: name, Body: body, Stored: true}
}

// CorruptDeflate returns a deflated entry whose compressed stream is garbage.
// The archive opens but reading the entry fails.
func CorruptDeflate(name string) File {
	return File{Name: name, Body: []byte{0xff, 0xff, 0xff, 0xff}, Raw: true}
}

// Build zips files in order.
func Build(tb testing.TB, files ...File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		if f.Raw {
			w, err := zw.CreateRaw(&zip.FileHeader{
				Name:               f.Name,
				Method:             zip.Deflate,
				CompressedSize64:   uint64(len(f.Body)),
				UncompressedSize64: 64,
			})
			if err != nil {
				tb.Fatalf("create %s: %v", f.Name, err)
			}
			if _, err := w.Write(f.Body); err != nil {
				tb.Fatalf("write %s: %v", f.Name, err)
			}
			continue
		}

		method := zip.Deflate
		if f.Stored {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			tb.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Body); err != nil {
			tb.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// Container returns a container descriptor pointing at packagePath.
func Container(packagePath string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`, packagePath)
}

// MinimalPackage is a package document with one linear chapter.
const MinimalPackage = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:identifier id="uid">urn:uuid:0b7a7a6e-1c5e-4f0e-9d0a-5a4c3e2f1d00</dc:identifier>
    <dc:title>Minimal</dc:title>
    <dc:language>en</dc:language>
    <dc:creator>Jane Doe</dc:creator>
  </metadata>
  <manifest>
    <item id="c1" href="chapter1.xhtml" media-type="text/html"/>
  </manifest>
  <spine>
    <itemref idref="c1"/>
  </spine>
</package>`

// Chapter is a tiny XHTML body.
const Chapter = `<html xmlns="http://www.w3.org/1999/xhtml"><body><p>Hello</p></body></html>`

// Minimal returns the smallest valid archive: container, content.opf and one chapter.
func Minimal(tb testing.TB) []byte {
	tb.Helper()
	return Build(tb,
		Stored("mimetype", []byte("application/epub+zip")),
		Text("META-INF/container.xml", Container("content.opf")),
		Text("content.opf", MinimalPackage),
		Text("chapter1.xhtml", Chapter),
	)
}
