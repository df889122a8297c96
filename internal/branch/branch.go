// Package branch resolves branch-preview environments by name.
//
// A failed lookup is reported as an error, but the router treats an error
// exactly like "no such branch" and falls back to traffic splitting.
package branch

import (
	"context"
	"fmt"

	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
)

// Resolver looks up a branch-preview environment.
//
// Resolve returns ok=false when the branch does not exist, is terminated, or
// has no endpoint. err is set only when the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, branch string) (res environments.Resolution, ok bool, err error)
}

// SourceResolver asks a directory Source for a single environment on every
// call. Previews come and go too often to be tracked in the directory
// snapshot.
type SourceResolver struct {
	source directory.Source
}

// NewSourceResolver creates a resolver backed by source.
func NewSourceResolver(source directory.Source) *SourceResolver {
	return &SourceResolver{source: source}
}

// Resolve implements Resolver.
func (s *SourceResolver) Resolve(ctx context.Context, branch string) (environments.Resolution, bool, error) {
	if branch == "" {
		return environments.Resolution{}, false, nil
	}

	urls, err := s.source.Fetch(ctx, []string{branch})
	if err != nil {
		return environments.Resolution{}, false, fmt.Errorf("resolve branch %q: %w", branch, err)
	}

	url := urls[branch]
	if url == "" {
		return environments.Resolution{}, false, nil
	}
	return environments.Resolution{Name: branch, URL: url}, true, nil
}
