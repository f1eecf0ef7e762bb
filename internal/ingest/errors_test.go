package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/timmy/leaflet/internal/epub"
)

func TestWrapAndKindOf(t *testing.T) {
	missing := &epub.MissingRequiredEntryError{Path: epub.ContainerPath}

	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"nil", nil, "", false},
		{"untagged", errors.New("boom"), KindInternal, false},
		{"input", Wrap(KindInput, "open", missing), KindInput, false},
		{"dependency", Wrap(KindDependency, "upload", errors.New("503")), KindDependency, true},
		{"deadline", Wrap(KindDependency, "upload", context.DeadlineExceeded), KindTimeout, true},
		{"bare deadline", fmt.Errorf("download: %w", context.DeadlineExceeded), KindTimeout, true},
		{"rewrap keeps kind", Wrap(KindDependency, "outer", Wrap(KindInput, "inner", missing)), KindInput, false},
		{"wrapped by fmt", fmt.Errorf("ctx: %w", Wrap(KindInput, "open", missing)), KindInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestErrorMessageIsVerbatim(t *testing.T) {
	missing := &epub.MissingRequiredEntryError{Path: epub.ContainerPath}
	err := Wrap(KindInput, "locate container", missing)

	assert.Equal(t, missing.Error(), err.Error())
	assert.ErrorIs(t, err, epub.ErrMissingRequiredEntry)
	assert.Nil(t, Wrap(KindInput, "noop", nil))
}
