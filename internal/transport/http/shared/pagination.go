package shared

import (
	"net/http"
	"strconv"
)

const totalCountHeader = "X-Total-Count"

type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset query parameters. Malformed or
// out-of-range values fall back to the defaults; limit is capped at
// maxLimit when maxLimit is positive.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) Pagination {
	q := r.URL.Query()
	page := Pagination{
		Limit:  queryInt(q.Get("limit"), defaultLimit, 1),
		Offset: queryInt(q.Get("offset"), 0, 0),
	}
	if maxLimit > 0 {
		page.Limit = min(page.Limit, maxLimit)
	}
	return page
}

// SetTotalCount reports the unpaginated result size to list clients.
func SetTotalCount(w http.ResponseWriter, total int) {
	w.Header().Set(totalCountHeader, strconv.Itoa(total))
}

func queryInt(raw string, fallback, minimum int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < minimum {
		return fallback
	}
	return v
}
