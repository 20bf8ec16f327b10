package pagination

import "gorm.io/gorm"

const (
	DefaultLimit = 50
	MaxLimit     = 250
)

// Pagination carries limit/offset query knobs.
type Pagination struct {
	Limit  int `form:"limit,default=50" json:"limit"`
	Offset int `form:"offset" json:"offset"`
}

// Normalize clamps the pagination to safe bounds.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Apply attaches the limit/offset to a gorm statement.
func (p Pagination) Apply(stmt *gorm.DB) *gorm.DB {
	p = p.Normalize()
	return stmt.Limit(p.Limit).Offset(p.Offset)
}

// PageInfo describes the page returned relative to the full result set.
type PageInfo struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}
