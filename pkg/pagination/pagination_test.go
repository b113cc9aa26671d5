package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name           string
		queryString    string
		expectedLimit  int
		expectedOffset int
	}{
		{"no params uses defaults", "", DefaultLimit, DefaultOffset},
		{"valid limit and offset", "limit=10&offset=20", 10, 20},
		{"zero limit uses default", "limit=0", DefaultLimit, DefaultOffset},
		{"negative limit uses default", "limit=-10", DefaultLimit, DefaultOffset},
		{"limit exceeds max", "limit=200", MaxLimit, DefaultOffset},
		{"negative offset uses default", "offset=-10", DefaultLimit, DefaultOffset},
		{"non-numeric values", "limit=abc&offset=xyz", DefaultLimit, DefaultOffset},
		{"float limit", "limit=10.5", DefaultLimit, DefaultOffset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("GET", "/?"+tt.queryString, nil)

			params := ParseParams(c)

			assert.Equal(t, tt.expectedLimit, params.Limit)
			assert.Equal(t, tt.expectedOffset, params.Offset)
		})
	}
}

func TestBuildMeta(t *testing.T) {
	tests := []struct {
		name               string
		limit              int
		total              int64
		expectedTotalPages int
	}{
		{"exact pages", 20, 100, 5},
		{"partial last page", 10, 25, 3},
		{"single item", 10, 1, 1},
		{"no items", 10, 0, 0},
		{"zero limit", 0, 100, 0},
		{"negative values", -10, -100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := BuildMeta(tt.limit, 0, tt.total)
			assert.Equal(t, tt.limit, meta.Limit)
			assert.Equal(t, tt.total, meta.Total)
			assert.Equal(t, tt.expectedTotalPages, meta.TotalPages)
		})
	}
}

func TestHasMore(t *testing.T) {
	assert.True(t, HasMore(0, 10, 100))
	assert.True(t, HasMore(89, 10, 100))
	assert.False(t, HasMore(90, 10, 100))
	assert.False(t, HasMore(110, 10, 100))
	assert.False(t, HasMore(0, 10, 0))
}

func TestGetCurrentPage(t *testing.T) {
	assert.Equal(t, 1, GetCurrentPage(0, 10))
	assert.Equal(t, 2, GetCurrentPage(15, 10))
	assert.Equal(t, 3, GetCurrentPage(50, 25))
	assert.Equal(t, 1, GetCurrentPage(10, 0))
	assert.Equal(t, 1, GetCurrentPage(10, -5))
}

func TestParams_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		params     Params
		n          int
		start, end int
	}{
		{"first window", Params{Limit: 2, Offset: 0}, 5, 0, 2},
		{"tail window", Params{Limit: 10, Offset: 3}, 5, 3, 5},
		{"offset past end", Params{Limit: 10, Offset: 9}, 5, 5, 5},
		{"empty list", Params{Limit: 20}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := tt.params.Bounds(tt.n)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}
