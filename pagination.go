package tripdb

import (
	"time"

	"github.com/hupe1980/tripdb/model"
)

// Default page settings.
const (
	DefaultPage    = 1
	DefaultPerPage = 50
)

// Pagination selects one page of a filtered result. Pages are 1-based.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultPagination returns page 1 with 50 items per page.
func DefaultPagination() Pagination {
	return Pagination{Page: DefaultPage, PerPage: DefaultPerPage}
}

func (p Pagination) normalize() Pagination {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.PerPage < 0 {
		p.PerPage = DefaultPerPage
	}
	return p
}

// PagedResult is one page of a filtered result.
type PagedResult struct {
	Items   []model.Record `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Pages   int            `json:"pages"`
	TimeMS  int64          `json:"time_ms"`
}

// Pages returns the number of pages needed for total items, or 0 when
// perPage is 0.
func Pages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	return (total + perPage - 1) / perPage
}

func newPagedResult(items []model.Record, total int, p Pagination, took time.Duration) *PagedResult {
	if items == nil {
		items = []model.Record{}
	}
	return &PagedResult{
		Items:   items,
		Total:   total,
		Page:    p.Page,
		PerPage: p.PerPage,
		Pages:   Pages(total, p.PerPage),
		TimeMS:  took.Milliseconds(),
	}
}
