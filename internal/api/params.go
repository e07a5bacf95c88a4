package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Pagination bounds.
const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// page is the envelope for list responses.
type page struct {
	Items   interface{} `json:"items"`
	Page    int         `json:"page"`
	PerPage int         `json:"per_page"`
	Total   int64       `json:"total"`
}

// uintParam parses a positive id path parameter, aborting with 400 when it
// is malformed.
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || v == 0 {
		badRequest(c, "%s must be a positive integer", name)
		return 0, false
	}
	return uint(v), true
}

// pagination reads page and per_page. Out-of-range values are clamped.
func pagination(c *gin.Context) (int, int) {
	p, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || p < 1 {
		p = 1
	}
	pp, err := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(defaultPerPage)))
	if err != nil || pp < 1 {
		pp = defaultPerPage
	}
	if pp > maxPerPage {
		pp = maxPerPage
	}
	return p, pp
}

// bindJSON decodes the body into dst, aborting with 400 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "invalid request body: %v", err)
		return false
	}
	return true
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(c *gin.Context, field string, s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		badRequest(c, "%s must be a YYYY-MM-DD date", field)
		return nil, false
	}
	return &t, true
}

// queryUint parses an optional positive integer query parameter.
func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		badRequest(c, "%s must be a positive integer", name)
		return 0, false
	}
	return uint(v), true
}
