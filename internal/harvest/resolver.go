// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/talent-harvester/internal/catalog"
	"github.com/pdiddy/talent-harvester/pkg/types"
)

// ReferenceStore is the persistence boundary of the Resolver. Ensure*
// methods insert when absent and otherwise return the stored entity
// unchanged.
type ReferenceStore interface {
	FindCountry(ctx context.Context, code string) (*types.Country, error)
	EnsureCountry(ctx context.Context, c types.Country) (*types.Country, error)
	FindField(ctx context.Context, name string) (*types.Field, error)
	EnsureField(ctx context.Context, name string) (*types.Field, error)
	FindInstitution(ctx context.Context, key string) (*types.Institution, error)
	EnsureInstitution(ctx context.Context, inst types.Institution) (*types.Institution, error)
	FindTopic(ctx context.Context, name string) (*types.Topic, error)
	EnsureTopic(ctx context.Context, t types.Topic) (*types.Topic, error)
}

// CountryNamer looks up the display name of a country code.
type CountryNamer interface {
	CountryName(ctx context.Context, code string) (string, error)
}

// Kind identifies a reference entity type.
type Kind string

const (
	KindCountry     Kind = "country"
	KindInstitution Kind = "institution"
	KindField       Kind = "field"
	KindTopic       Kind = "topic"
)

type memoKey struct {
	kind Kind
	key  string
}

// resolved is a memoized reference: its id and the id of the entity it
// points at (country of an institution, field of a topic).
type resolved struct {
	id     string
	parent string
}

// Resolver finds or creates reference entities by natural key. Results are
// memoized for the lifetime of the Resolver; concurrent resolutions of the
// same key share one store round trip. The store stays the authority on
// existence: only resolved ids are memoized, never misses.
type Resolver struct {
	store ReferenceStore
	namer CountryNamer
	w     io.Writer

	mu    sync.RWMutex
	memo  map[memoKey]resolved
	group singleflight.Group
}

// NewResolver creates a Resolver. A nil namer names countries by their code.
func NewResolver(store ReferenceStore, namer CountryNamer, w io.Writer) *Resolver {
	if w == nil {
		w = io.Discard
	}
	return &Resolver{
		store: store,
		namer: namer,
		w:     w,
		memo:  make(map[memoKey]resolved),
	}
}

func (r *Resolver) cached(k memoKey) (resolved, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.memo[k]
	return v, ok
}

// resolve returns the memoized reference for (kind, key), or runs lookup and
// then, on a store miss, create.
func (r *Resolver) resolve(ctx context.Context, kind Kind, key string,
	lookup func(context.Context) (resolved, bool, error),
	create func(context.Context) (resolved, error),
) (resolved, error) {
	k := memoKey{kind: kind, key: key}
	if v, ok := r.cached(k); ok {
		return v, nil
	}

	v, err, _ := r.group.Do(string(kind)+"\x00"+key, func() (any, error) {
		if v, ok := r.cached(k); ok {
			return v, nil
		}
		v, found, err := lookup(ctx)
		if err != nil {
			return resolved{}, err
		}
		if !found {
			if v, err = create(ctx); err != nil {
				return resolved{}, err
			}
		}
		r.mu.Lock()
		r.memo[k] = v
		r.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return resolved{}, fmt.Errorf("resolving %s %q: %w", kind, key, err)
	}
	return v.(resolved), nil
}

// Country resolves an ISO country code to its stored id (the upper-case
// code). New countries are named through the CountryNamer; a failed lookup
// names the country by its code. An empty code resolves to "".
func (r *Resolver) Country(ctx context.Context, code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", nil
	}
	v, err := r.resolve(ctx, KindCountry, code,
		func(ctx context.Context) (resolved, bool, error) {
			c, err := r.store.FindCountry(ctx, code)
			if err != nil || c == nil {
				return resolved{}, false, err
			}
			return resolved{id: c.Code}, true, nil
		},
		func(ctx context.Context) (resolved, error) {
			c, err := r.store.EnsureCountry(ctx, types.Country{Code: code, DisplayName: r.countryName(ctx, code)})
			if err != nil {
				return resolved{}, err
			}
			fmt.Fprintf(r.w, "  created country %s (%s)\n", c.Code, c.DisplayName)
			return resolved{id: c.Code}, nil
		},
	)
	return v.id, err
}

func (r *Resolver) countryName(ctx context.Context, code string) string {
	if r.namer == nil {
		return code
	}
	name, err := r.namer.CountryName(ctx, code)
	if err != nil || name == "" {
		fmt.Fprintf(r.w, "  warning: could not fetch country name for %s: %v\n", code, err)
		return code
	}
	return name
}

// Field resolves a field display name to its id. An empty name resolves to "".
func (r *Resolver) Field(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}
	v, err := r.resolve(ctx, KindField, name,
		func(ctx context.Context) (resolved, bool, error) {
			f, err := r.store.FindField(ctx, name)
			if err != nil || f == nil {
				return resolved{}, false, err
			}
			return resolved{id: f.ID}, true, nil
		},
		func(ctx context.Context) (resolved, error) {
			f, err := r.store.EnsureField(ctx, name)
			if err != nil {
				return resolved{}, err
			}
			return resolved{id: f.ID}, nil
		},
	)
	return v.id, err
}

// Institution resolves an institution by ROR, falling back to its display
// name, and returns its id and country id. A reference with neither
// resolves to empty ids.
func (r *Resolver) Institution(ctx context.Context, ref catalog.InstitutionRef) (id, countryID string, err error) {
	key := ref.Key()
	if key == "" {
		return "", "", nil
	}
	v, err := r.resolve(ctx, KindInstitution, key,
		func(ctx context.Context) (resolved, bool, error) {
			inst, err := r.store.FindInstitution(ctx, key)
			if err != nil || inst == nil {
				return resolved{}, false, err
			}
			return resolved{id: inst.ID, parent: inst.CountryID}, true, nil
		},
		func(ctx context.Context) (resolved, error) {
			country, err := r.Country(ctx, ref.CountryCode)
			if err != nil {
				return resolved{}, err
			}
			inst, err := r.store.EnsureInstitution(ctx, types.Institution{
				Key:         key,
				DisplayName: ref.DisplayName,
				CountryID:   country,
			})
			if err != nil {
				return resolved{}, err
			}
			return resolved{id: inst.ID, parent: inst.CountryID}, nil
		},
	)
	return v.id, v.parent, err
}

// Topic resolves a topic by display name and returns its id and field id.
// New topics start with a fresh sync status. A nameless reference resolves
// to empty ids.
func (r *Resolver) Topic(ctx context.Context, ref catalog.TopicRef) (id, fieldID string, err error) {
	name := ref.DisplayName
	if name == "" {
		return "", "", nil
	}
	v, err := r.resolve(ctx, KindTopic, name,
		func(ctx context.Context) (resolved, bool, error) {
			t, err := r.store.FindTopic(ctx, name)
			if err != nil || t == nil {
				return resolved{}, false, err
			}
			return resolved{id: t.ID, parent: t.FieldID}, true, nil
		},
		func(ctx context.Context) (resolved, error) {
			field, err := r.Field(ctx, ref.FieldName())
			if err != nil {
				return resolved{}, err
			}
			t, err := r.store.EnsureTopic(ctx, types.Topic{
				DisplayName: name,
				ExternalID:  catalog.StripID(ref.ID),
				FieldID:     field,
				SyncStatus:  types.FreshSyncStatus(),
			})
			if err != nil {
				return resolved{}, err
			}
			return resolved{id: t.ID, parent: t.FieldID}, nil
		},
	)
	return v.id, v.parent, err
}
