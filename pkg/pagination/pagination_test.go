package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		page    int
		perPage int
		offset  int
	}{
		{"defaults", "", 1, DefaultPerPage, 0},
		{"explicit", "page=3&per_page=50", 3, 50, 100},
		{"negative page", "page=-1&per_page=10", 1, 10, 0},
		{"garbage", "page=abc&per_page=xyz", 1, DefaultPerPage, 0},
		{"zero per page", "page=2&per_page=0", 2, DefaultPerPage, DefaultPerPage},
		{"capped per page", "page=2&per_page=500", 2, MaxPerPage, MaxPerPage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/user/admin-dashboard?"+tt.query, nil)
			p := FromRequest(req)

			assert.Equal(t, tt.page, p.Page)
			assert.Equal(t, tt.perPage, p.PerPage)
			assert.Equal(t, tt.offset, p.Offset())
			assert.Equal(t, tt.perPage, p.Limit())
		})
	}
}

func TestParams_ZeroValueIsFirstPage(t *testing.T) {
	var p Params
	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, DefaultPerPage, p.Limit())
	assert.Equal(t, DefaultParams(), p.Normalize())
}

func TestNewResult(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		params  Params
		pages   int
		hasNext bool
	}{
		{"empty", 0, Params{Page: 1, PerPage: 10}, 0, false},
		{"exact fit", 20, Params{Page: 1, PerPage: 10}, 2, true},
		{"partial last page", 21, Params{Page: 3, PerPage: 10}, 3, false},
		{"past the end", 5, Params{Page: 4, PerPage: 10}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult([]string{"a"}, tt.total, tt.params)
			assert.Equal(t, tt.pages, r.Pages)
			assert.Equal(t, tt.hasNext, r.HasNext)
			assert.Equal(t, tt.total, r.Total)
		})
	}
}

func TestNewResult_NilItemsRenderEmpty(t *testing.T) {
	r := NewResult[int](nil, 0, Params{})
	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
	assert.Equal(t, DefaultPerPage, r.PerPage)
}
