package sources

import (
	"context"

	"github.com/kerbaras/onepiece-offline/pkg/data"
)

// Resolver reads the remote catalog and per-chapter page lists.
type Resolver interface {
	// ListEntries returns the full chapter catalog.
	ListEntries(ctx context.Context) ([]data.ChapterEntry, error)
	// ResolvePages returns the pages of one chapter, ordered as received.
	// It fails with data.ErrNotAvailable for removed or unreleased chapters
	// and data.ErrParse when the page carries no usable data block.
	ResolvePages(ctx context.Context, number int) (*data.ChapterData, error)
}
