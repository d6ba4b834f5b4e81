package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 50, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=0&offset=-1", 50, 0},
		{"limit=abc", 50, 0},
		{"limit=1000", 200, 0},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/tasks?"+tc.query, nil)
		page := ParsePagination(r, 50, 200)
		assert.Equal(t, tc.limit, page.Limit, tc.query)
		assert.Equal(t, tc.offset, page.Offset, tc.query)
	}
}

func TestSetTotalCount(t *testing.T) {
	rec := httptest.NewRecorder()
	SetTotalCount(rec, 42)
	assert.Equal(t, "42", rec.Header().Get("X-Total-Count"))
}
