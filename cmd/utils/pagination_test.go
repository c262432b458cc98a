package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(httptest.NewRequest("GET", "/posts/feed/", nil)))
	assert.Equal(t, 1, ParsePage(httptest.NewRequest("GET", "/posts/feed/?page=0", nil)))
	assert.Equal(t, 1, ParsePage(httptest.NewRequest("GET", "/posts/feed/?page=junk", nil)))
	assert.Equal(t, 4, ParsePage(httptest.NewRequest("GET", "/posts/feed/?page=4", nil)))
}

func TestNewPaginationMeta(t *testing.T) {
	meta := NewPaginationMeta(2, 10, 25)
	assert.Equal(t, 2, meta.CurrentPage)
	assert.Equal(t, 10, meta.PerPage)
	assert.Equal(t, int64(25), meta.TotalItems)
	assert.Equal(t, int64(3), meta.TotalPages)

	assert.Equal(t, int64(0), NewPaginationMeta(1, 10, 0).TotalPages)
	assert.Equal(t, int64(1), NewPaginationMeta(1, 10, 10).TotalPages)
}
