// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

var (
	// \s only matches ASCII whitespace; \p{Z} adds the Unicode separators.
	slugStrip  = regexp.MustCompile(`[^\p{L}\p{N}_\p{Z}\s-]`)
	slugSpaces = regexp.MustCompile(`[\p{Z}\s]+`)
	slugDashes = regexp.MustCompile(`-+`)
)

// Slugify lowercases name, drops characters other than word characters,
// whitespace and hyphens, turns whitespace runs into single hyphens, and
// trims leading and trailing hyphens.
func Slugify(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugChecker reports whether a slug is already persisted.
type SlugChecker interface {
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// SlugAllocator derives unique slugs for new profiles. Slugs it hands out
// stay claimed for its lifetime, so concurrent walks never receive the same
// slug before either batch is stored.
type SlugAllocator struct {
	store SlugChecker
	w     io.Writer

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewSlugAllocator creates an allocator that checks persisted slugs in store.
// Lookup failures are logged to w.
func NewSlugAllocator(store SlugChecker, w io.Writer) *SlugAllocator {
	if w == nil {
		w = io.Discard
	}
	return &SlugAllocator{store: store, w: w, claimed: make(map[string]struct{})}
}

// Allocate returns the first of base, base-1, base-2, ... that is not in
// reserved, not handed out before, and not persisted. It returns "" when
// name yields no slug or the store cannot be consulted; the profile is then
// stored without one. The caller adds the result to reserved before
// allocating again for the same batch.
func (a *SlugAllocator) Allocate(ctx context.Context, name string, reserved map[string]struct{}) (string, error) {
	base := Slugify(name)
	if base == "" {
		return "", nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	slug := base
	for n := 1; ; n++ {
		_, inBatch := reserved[slug]
		_, claimed := a.claimed[slug]
		if !inBatch && !claimed {
			exists, err := a.store.SlugExists(ctx, slug)
			if err != nil {
				fmt.Fprintf(a.w, "  warning: no slug for %q: %v\n", name, err)
				return "", nil
			}
			if !exists {
				a.claimed[slug] = struct{}{}
				return slug, nil
			}
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}
