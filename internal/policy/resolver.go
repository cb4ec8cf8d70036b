package policy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ocx/paygate/internal/core"
	"github.com/ocx/paygate/internal/mapping"
)

// ErrNotFound is returned by Resolve when no level has an active matching
// AuthConfig record.
var ErrNotFound = errors.New("policy: no active configuration found for coordinate")

// Resolver resolves AuthConfig and MappingDocument lookups against a
// Store, memoizing results until the store announces a mutation.
type Resolver struct {
	store Store
	cache *resolutionCache
}

// NewResolver wires a Store and subscribes to its mutation notifications
// when it implements MutationPublisher.
func NewResolver(store Store) *Resolver {
	r := &Resolver{store: store, cache: newResolutionCache()}
	if pub, ok := store.(MutationPublisher); ok {
		pub.OnMutation(r.cache.invalidateAll)
	}
	return r
}

func coordKey(c core.PolicyCoordinate) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", c.TenantID, c.PaymentType, c.LocalInstrumentCode, c.ClearingSystemCode, c.Direction)
}

// Resolve returns the effective AuthConfig for coordinate, consulting the
// four precedence levels in order and returning the first one with an
// active matching record. ErrNotFound is a fatal configuration error on
// the outbound path, per the failure semantics.
func (r *Resolver) Resolve(ctx context.Context, coordinate core.PolicyCoordinate) (AuthConfig, Level, error) {
	key := coordKey(coordinate)
	if cached, ok := r.cache.getAuth(key); ok {
		if !cached.found {
			return AuthConfig{}, "", ErrNotFound
		}
		return cached.config, cached.level, nil
	}

	for _, level := range Levels {
		records, err := r.store.ListAuthRecords(ctx, level)
		if err != nil {
			return AuthConfig{}, "", fmt.Errorf("policy: list auth records (%s): %w", level, err)
		}
		if rec, ok := bestAuthCandidate(records, coordinate); ok {
			r.cache.putAuth(key, authResolution{config: rec.Config, level: level, found: true})
			return rec.Config, level, nil
		}
	}

	r.cache.putAuth(key, authResolution{found: false})
	return AuthConfig{}, "", ErrNotFound
}

// bestAuthCandidate filters to active, coordinate-matching records and
// picks the highest priority, breaking ties on lexicographic name.
func bestAuthCandidate(records []AuthRecord, coordinate core.PolicyCoordinate) (AuthRecord, bool) {
	var candidates []AuthRecord
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		if !coordinate.Matches(rec.Coordinate) {
			continue
		}
		candidates = append(candidates, rec)
	}
	if len(candidates) == 0 {
		return AuthRecord{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], true
}

// EffectiveMapping returns the single effective MappingDocument for
// coordinate and direction, or nil when none is configured — in which
// case the orchestrator falls back to the canonical built-in
// transformation.
func (r *Resolver) EffectiveMapping(ctx context.Context, coordinate core.PolicyCoordinate, direction core.Direction) (*mapping.Document, error) {
	lookup := coordinate
	lookup.Direction = direction
	key := coordKey(lookup)
	if cached, ok := r.cache.getMapping(key); ok {
		return cached, nil
	}

	docs, err := r.store.ListMappingDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: list mapping documents: %w", err)
	}

	var candidates []*mapping.Document
	for _, doc := range docs {
		if !doc.Active {
			continue
		}
		if doc.Direction != core.DirectionBidirectional && doc.Direction != direction {
			continue
		}
		docCoord := doc.Coordinate
		docCoord.Direction = ""
		probe := coordinate
		probe.Direction = ""
		if !probe.Matches(docCoord) {
			continue
		}
		candidates = append(candidates, doc)
	}

	if len(candidates) == 0 {
		r.cache.putMapping(key, nil)
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].Name < candidates[j].Name
	})

	r.cache.putMapping(key, candidates[0])
	return candidates[0], nil
}
