package handler

import (
	"net/http"
	"strconv"

	apperrors "github.com/fingerprintdoorbell/doorbell-server-go/internal/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset from the query. Missing values take
// defaults and an oversized limit is capped; anything unparseable or
// negative is rejected.
func ParsePagination(r *http.Request) (PaginationParams, error) {
	page := PaginationParams{Limit: DefaultLimit}
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return page, apperrors.InvalidInput("limit", "must be a positive number")
		}
		page.Limit = min(limit, MaxLimit)
	}

	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return page, apperrors.InvalidInput("offset", "must not be negative")
		}
		page.Offset = offset
	}

	return page, nil
}
