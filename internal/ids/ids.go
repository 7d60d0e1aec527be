package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

const rolePrefix = "role"

// RoleID derives the stable role identifier from a free-text display name.
// The derivation is total: every input, including the empty string, yields a
// valid identifier, and it is idempotent on already-derived ids. Characters
// outside [A-Za-z0-9 -] are dropped, separator runs collapse to a single
// hyphen, and the result is lower-cased and prefixed with "role-".
func RoleID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '-':
			// Hyphens count as separators so RoleID(RoleID(x)) == RoleID(x).
			b.WriteByte(' ')
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		return rolePrefix
	}
	slug := strings.Join(strings.Fields(cleaned), "-")
	slug = strings.TrimPrefix(slug, rolePrefix+"-")
	if slug == rolePrefix {
		return rolePrefix
	}
	return rolePrefix + "-" + slug
}
