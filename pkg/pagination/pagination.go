// Package pagination holds the page and cursor shapes shared by list endpoints.
package pagination

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// NormalizeLimit maps non-positive limits to DefaultLimit and caps at MaxLimit.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// Page holds offset pagination inputs. Page numbers start at 1.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// PageResult is the envelope of offset-paginated lists.
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	n := p.Normalize()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{
		Items: items,
		Total: total,
		Page:  n.Page,
		Limit: n.Limit,
		Pages: TotalPages(total, n.Limit),
	}
}

// TotalPages returns ceil(total/limit), or zero for an empty result.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
