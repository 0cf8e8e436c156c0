package helpers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakwise/internal/domain"
)

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query        string
		wantPage     int
		wantPageSize int
		wantErr      string
	}{
		{query: "", wantPage: DefaultPage, wantPageSize: DefaultPageSize},
		{query: "?page=3&page_size=50", wantPage: 3, wantPageSize: 50},
		{query: "?page_size=1000", wantPage: DefaultPage, wantPageSize: MaxPageSize},
		{query: "?page=0", wantErr: "page must be a positive integer"},
		{query: "?page_size=-1", wantErr: "page_size must be a positive integer"},
		{query: "?page=abc", wantErr: "page must be a positive integer"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := ParsePagination(httptest.NewRequest("GET", "/events/1/attendance"+tt.query, nil))
			if tt.wantErr != "" {
				require.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPageSize, p.PageSize)
		})
	}
}

func TestNewPaginationMeta(t *testing.T) {
	assert.Equal(t,
		PaginationMeta{Page: 2, PageSize: 10, Total: 25, TotalPages: 3, HasNext: true},
		NewPaginationMeta(domain.PaginationParams{Page: 2, PageSize: 10}, 25))
	assert.False(t, NewPaginationMeta(domain.PaginationParams{Page: 3, PageSize: 10}, 25).HasNext)
	assert.Equal(t, 0, NewPaginationMeta(domain.PaginationParams{Page: 1}, 25).TotalPages)
}
