package epub

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptArchive is returned when the upload is not a readable zip container.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrMissingRequiredEntry matches MissingRequiredEntryError.
	ErrMissingRequiredEntry = errors.New("missing required entry")

	// ErrMissingPackageDocument is returned when the container descriptor has no rootfile full-path.
	ErrMissingPackageDocument = errors.New("missing package document")

	// ErrMalformedPackageDocument is returned for XML that cannot be decoded.
	ErrMalformedPackageDocument = errors.New("malformed package document")

	// ErrMissingRequiredElement matches MissingRequiredElementError.
	ErrMissingRequiredElement = errors.New("missing required element")
)

// MissingRequiredEntryError names the archive entry that was expected but absent.
type MissingRequiredEntryError struct {
	Path string
}

func (e *MissingRequiredEntryError) Error() string {
	return fmt.Sprintf("missing required entry: %s", e.Path)
}

func (e *MissingRequiredEntryError) Is(target error) bool {
	return target == ErrMissingRequiredEntry
}

// MissingRequiredElementError names the package document element that was absent.
type MissingRequiredElementError struct {
	Element string
}

func (e *MissingRequiredElementError) Error() string {
	return fmt.Sprintf("missing required element: <%s>", e.Element)
}

func (e *MissingRequiredElementError) Is(target error) bool {
	return target == ErrMissingRequiredElement
}

func malformed(doc string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedPackageDocument, doc, err)
}
