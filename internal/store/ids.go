package store

import (
	"strings"

	"github.com/google/uuid"
)

const (
	prefixSeries   = "ser"
	prefixImage    = "img"
	prefixTag      = "tag"
	prefixTagGroup = "tgp"
	prefixJob      = "job"
	prefixStep     = "stp"
)

// newID returns prefix-<12 hex chars> taken from a random uuid.
func newID(prefix string) string {
	u := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + u[:12]
}
