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

// Filename prefixes base with a fresh identifier so stored files never collide
// and sort by creation time. The base is lower-cased and path separators are
// replaced to keep the result safe as a single path element.
func Filename(base string) string {
	base = strings.ToLower(strings.TrimSpace(base))
	base = strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(base)
	if base == "" {
		return New()
	}
	return New() + "-" + base
}
