package utils

import (
	"net/http"
	"strconv"
)

// PaginationMeta is the shared paginated-response shape.
type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int64 `json:"total_pages"`
}

// ParsePage reads the page query parameter, defaulting to 1.
func ParsePage(r *http.Request) int {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	return page
}

func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	return PaginationMeta{
		CurrentPage: page,
		PerPage:     pageSize,
		TotalItems:  total,
		TotalPages:  (total + int64(pageSize) - 1) / int64(pageSize),
	}
}
