package directory

import (
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Snapshot is an immutable view of environment name → base URL.
// A new Snapshot is built on every refresh and swapped in atomically;
// readers never lock.
type Snapshot struct {
	ETag         string            `json:"etag"`
	Environments map[string]string `json:"environments"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// emptySnapshot is served until the first refresh succeeds.
var emptySnapshot = &Snapshot{Environments: map[string]string{}}

// BuildSnapshot copies urls into a new snapshot and fingerprints it.
// Entries with an empty URL are dropped; they are not routable.
func BuildSnapshot(urls map[string]string) *Snapshot {
	envs := make(map[string]string, len(urls))
	for name, url := range urls {
		if url != "" {
			envs[name] = url
		}
	}
	return &Snapshot{
		ETag:         fingerprint(envs),
		Environments: envs,
		UpdatedAt:    time.Now().UTC(),
	}
}

// Lookup returns the URL for name.
func (s *Snapshot) Lookup(name string) (string, bool) {
	url, ok := s.Environments[name]
	return url, ok
}

// fingerprint hashes the sorted entries so equal contents give equal ETags
// regardless of map order.
func fingerprint(envs map[string]string) string {
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)

	d := xxhash.New()
	for _, name := range names {
		_, _ = d.WriteString(name)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(envs[name])
		_, _ = d.WriteString("\n")
	}
	return `W/"` + strconv.FormatUint(d.Sum64(), 16) + `"`
}
