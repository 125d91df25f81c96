package backend

import (
	"fmt"

	"github.com/modelapi/modelapi/core"
)

// DefaultPageSize is the number of instances a list request answers with.
// Callers infer "no more pages" purely from receiving fewer than
// DefaultPageSize items; there is no explicit hasMore flag.
const DefaultPageSize = 10

// Paginate returns the slice items[(pageNumber-1)*pageSize :
// pageNumber*pageSize]. It fails with ErrNotFound if pageNumber is below 1
// or the page starts beyond the end of items. A pageSize below 1 falls
// back to DefaultPageSize.
func Paginate(items []core.Instance, pageNumber, pageSize int) ([]core.Instance, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageNumber < 1 {
		return nil, fmt.Errorf("%w: invalid page number %d", core.ErrNotFound, pageNumber)
	}
	start := (pageNumber - 1) * pageSize
	if start >= len(items) {
		return nil, fmt.Errorf("%w: page %d is beyond the end", core.ErrNotFound, pageNumber)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}
