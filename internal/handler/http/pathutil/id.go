// Package pathutil parses path parameters.
package pathutil

import (
	"errors"
	"net/http"
	"strconv"
)

// ErrInvalidID is returned for a missing, non-numeric or non-positive id.
var ErrInvalidID = errors.New("invalid id")

// ParseID parses a positive int64 id.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

// PathID parses the ServeMux wildcard name of r as an id.
func PathID(r *http.Request, name string) (int64, error) {
	return ParseID(r.PathValue(name))
}
