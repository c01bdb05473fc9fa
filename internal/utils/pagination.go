// Package utils holds query-string helpers shared by handlers and services.
package utils

import "strconv"

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Paginate normalizes 1-based page/limit input and returns the row offset.
// A page below 1 becomes 1, a non-positive limit becomes def, and limit is
// capped at max when max > 0.
func Paginate(page, limit, def, max int) (p, l, offset int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	return page, limit, (page - 1) * limit
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	switch {
	case n < lo:
		return lo
	case n > hi:
		return hi
	}
	return n
}
