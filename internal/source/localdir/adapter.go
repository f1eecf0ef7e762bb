package localdir

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/timmy/leaflet/internal/source"
)

// Adapter implements the Source interface for a directory tree of .epub files.
type Adapter struct {
	root   string
	items  []source.EpubItem
	loaded bool
}

// NewAdapter creates a new local directory adapter.
// Parameters:
//   - root: directory scanned recursively for .epub files.
// Returns:
//   - *Adapter: initialized adapter.
func NewAdapter(root string) *Adapter {
	return &Adapter{root: root}
}

// GetSourceID returns the unique identifier for this source.
func (a *Adapter) GetSourceID() string {
	return "localdir:" + filepath.Base(a.root)
}

// GetDisplayName returns a human-readable name for this source.
func (a *Adapter) GetDisplayName() string {
	return fmt.Sprintf("Local directory (%s)", a.root)
}

// SupportsIncremental returns false; every run rescans the directory.
func (a *Adapter) SupportsIncremental() bool {
	return false
}

// FetchBatch returns up to limit items starting at the index encoded in cursor.
// Parameters:
//   - ctx: checked between directory entries while scanning.
//   - cursor: pagination cursor as an index string.
//   - limit: maximum number of items to fetch.
// Returns:
//   - []source.EpubItem: batch of items ordered by relative path.
//   - string: next cursor or empty if no more items.
//   - error: non-nil if scanning fails or the cursor is invalid.
func (a *Adapter) FetchBatch(ctx context.Context, cursor string, limit int) ([]source.EpubItem, string, error) {
	if !a.loaded {
		if err := a.loadItems(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to scan %s: %w", a.root, err)
		}
		a.loaded = true
	}

	startIndex := 0
	if cursor != "" {
		var err error
		startIndex, err = strconv.Atoi(cursor)
		if err != nil || startIndex < 0 {
			return nil, "", fmt.Errorf("invalid cursor %q", cursor)
		}
	}
	if limit <= 0 {
		limit = len(a.items)
	}

	if startIndex >= len(a.items) {
		return []source.EpubItem{}, "", nil
	}

	endIndex := startIndex + limit
	if endIndex > len(a.items) {
		endIndex = len(a.items)
	}

	nextCursor := ""
	if endIndex < len(a.items) {
		nextCursor = strconv.Itoa(endIndex)
	}

	return a.items[startIndex:endIndex], nextCursor, nil
}

// GetTotalCount returns the number of .epub files under the root.
func (a *Adapter) GetTotalCount(ctx context.Context) (int, error) {
	if !a.loaded {
		if err := a.loadItems(ctx); err != nil {
			return 0, err
		}
		a.loaded = true
	}
	return len(a.items), nil
}

func (a *Adapter) loadItems(ctx context.Context) error {
	a.items = []source.EpubItem{}

	err := filepath.WalkDir(a.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden directories
			if p != a.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".epub") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(a.root, p)
		if err != nil {
			return err
		}

		a.items = append(a.items, source.EpubItem{
			SourceID:  filepath.ToSlash(rel),
			LocalPath: p,
			FileName:  d.Name(),
			Size:      info.Size(),
		})
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(a.items, func(i, j int) bool {
		return a.items[i].SourceID < a.items[j].SourceID
	})
	return nil
}
