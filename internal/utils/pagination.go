package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultLimit = 18
	maxLimit     = 100
)

// Pagination holds pagination parameters.
type Pagination struct {
	Limit  int
	Offset int
}

// ParsePagination reads limit and offset query params. A page param is
// accepted as an alternative to offset.
func ParsePagination(c *fiber.Ctx) Pagination {
	limit := parseInt(c.Query("limit"), defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset := parseInt(c.Query("offset"), 0)
	if page := parseInt(c.Query("page"), 0); page > 1 && c.Query("offset") == "" {
		offset = (page - 1) * limit
	}
	if offset < 0 {
		offset = 0
	}

	return Pagination{
		Limit:  limit,
		Offset: offset,
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(value); err == nil {
		return parsed
	}
	return fallback
}
