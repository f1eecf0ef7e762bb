package epub

import (
	"encoding/xml"
	"io"
	"strings"
)

const packageMediaType = "application/oebps-package+xml"

type containerDoc struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// ParseContainer extracts the package document path from the container
// descriptor. When several rootfiles are declared the first one with the
// package media type wins.
func ParseContainer(text string) (string, error) {
	var doc containerDoc
	if err := newDecoder(text).Decode(&doc); err != nil {
		if err == io.EOF {
			return "", ErrMissingPackageDocument
		}
		return "", malformed(ContainerPath, err)
	}

	var fallback string
	for _, rf := range doc.RootFiles {
		p := entryPath(rf.FullPath)
		if p == "" {
			continue
		}
		if strings.EqualFold(rf.MediaType, packageMediaType) {
			return p, nil
		}
		if fallback == "" {
			fallback = p
		}
	}
	if fallback == "" {
		return "", ErrMissingPackageDocument
	}
	return fallback, nil
}

// newDecoder returns a decoder for text that has already been decoded to
// UTF-8, so any declared charset is accepted as-is.
func newDecoder(text string) *xml.Decoder {
	d := xml.NewDecoder(strings.NewReader(text))
	d.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	d.Entity = xml.HTMLEntity
	return d
}
