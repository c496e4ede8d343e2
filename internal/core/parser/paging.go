package parser

import "github.com/kirillkom/fiscal-doc-analyzer/internal/core/domain"

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page slices an already parsed item list. Page numbers start at 1 and the page
// size is clamped to 1..MaxPageSize.
func Page[T any](items []T, page, pageSize int) ([]T, domain.Paging) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total := len(items)
	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := min(start+pageSize, total)
	out := items[start:end]

	return out, domain.Paging{
		Page:       page,
		PageSize:   pageSize,
		Pages:      (total + pageSize - 1) / pageSize,
		CountTotal: total,
		CountPage:  len(out),
	}
}
