package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit  = 20
	MaxLimit      = 100
	DefaultOffset = 0
)

// Params is a limit/offset window
type Params struct {
	Limit  int
	Offset int
}

// Meta describes a page of a larger result
type Meta struct {
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// ParseParams reads limit and offset from the query string, falling back to
// defaults on missing or invalid values
func ParseParams(c *gin.Context) Params {
	params := Params{Limit: DefaultLimit, Offset: DefaultOffset}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		params.Limit = limit
	}
	if params.Limit > MaxLimit {
		params.Limit = MaxLimit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil && offset >= 0 {
		params.Offset = offset
	}

	return params
}

// BuildMeta builds the page metadata for a window over total items
func BuildMeta(limit, offset int, total int64) *Meta {
	totalPages := 0
	if limit > 0 && total > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Meta{
		Limit:      limit,
		Offset:     offset,
		Total:      total,
		TotalPages: totalPages,
	}
}

// HasMore reports whether items remain after the window
func HasMore(offset, limit int, total int64) bool {
	return int64(offset+limit) < total
}

// GetCurrentPage returns the 1-based page the offset falls on
func GetCurrentPage(offset, limit int) int {
	if limit <= 0 {
		return 1
	}
	return offset/limit + 1
}

// Bounds clamps the window to a slice of length n and returns [start, end)
func (p Params) Bounds(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}
