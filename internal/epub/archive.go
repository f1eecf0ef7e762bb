package epub

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ContainerPath is the fixed location of the container descriptor.
const ContainerPath = "META-INF/container.xml"

// Archive is an uploaded EPUB held in memory with its entries indexed by path.
type Archive struct {
	data    []byte
	entries map[string]*zip.File
}

// OpenArchive parses data as a zip container.
// Parameters:
//   - data: complete archive bytes; retained for pass-through storage.
//
// Returns:
//   - *Archive: indexed archive.
//   - error: ErrCorruptArchive if data is not a readable zip.
func OpenArchive(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}

	entries := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		// First entry wins on duplicate names, like most readers.
		if _, dup := entries[f.Name]; !dup {
			entries[f.Name] = f
		}
	}

	return &Archive{data: data, entries: entries}, nil
}

// Bytes returns the original archive bytes.
func (a *Archive) Bytes() []byte {
	return a.data
}

// Len returns the number of distinct entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// Names returns all entry paths in lexical order.
func (a *Archive) Names() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry looks up an entry by exact, case-sensitive path.
func (a *Archive) Entry(path string) (*zip.File, bool) {
	f, ok := a.entries[path]
	return f, ok
}

// Require is Entry for entries the ingestion cannot proceed without.
func (a *Archive) Require(path string) (*zip.File, error) {
	f, ok := a.entries[path]
	if !ok {
		return nil, &MissingRequiredEntryError{Path: path}
	}
	return f, nil
}

// ReadBytes fully decompresses an entry.
func (a *Archive) ReadBytes(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	return data, nil
}

// ReadText decompresses an entry and decodes it to UTF-8.
// Parameters:
//   - f: archive entry.
//   - label: WHATWG encoding label ("utf-8", "utf-16le", "windows-1252", ...);
//     empty means UTF-8. A byte order mark overrides the label.
//
// Returns:
//   - string: decoded text.
//   - error: non-nil on decompression failure or an unknown label.
func (a *Archive) ReadText(f *zip.File, label string) (string, error) {
	var enc encoding.Encoding = unicode.UTF8
	if label != "" {
		e, err := htmlindex.Get(label)
		if err != nil {
			return "", fmt.Errorf("unsupported text encoding %q: %w", label, err)
		}
		enc = e
	}

	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, f.Name, err)
	}
	defer rc.Close()

	text, err := io.ReadAll(transform.NewReader(rc, unicode.BOMOverride(enc.NewDecoder())))
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrCorruptArchive, f.Name, err)
	}
	return string(text), nil
}

// ReadRaw returns the entry's stored bytes without decompressing them.
// For entries using zip.Store this equals the content.
func (a *Archive) ReadRaw(f *zip.File) ([]byte, error) {
	r, err := f.OpenRaw()
	if err != nil {
		return nil, fmt.Errorf("%w: open raw %s: %v", ErrCorruptArchive, f.Name, err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read raw %s: %v", ErrCorruptArchive, f.Name, err)
	}
	return data, nil
}

// ReadContent returns an entry's content, skipping the decompressor for
// stored entries.
func (a *Archive) ReadContent(f *zip.File) ([]byte, error) {
	if f.Method == zip.Store {
		return a.ReadRaw(f)
	}
	return a.ReadBytes(f)
}
