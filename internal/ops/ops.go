// Package ops implements the operations shared by the CLI, MCP and web
// surfaces. Each operation takes typed input, talks to the database
// layer, and returns typed output with coded errors.
package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Pagination limits
const (
	DefaultListLimit   = 20
	MaxListLimit       = 100
	DefaultSearchLimit = 20
	MaxSearchLimit     = 50
	DefaultRunsLimit   = 10
	MaxRunsLimit       = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// cleanCategory trims and lowercases a category key. Categories are
// taxonomy keys, not display strings, so they are stored folded.
func cleanCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}
