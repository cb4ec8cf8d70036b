package policy

import (
	"fmt"
	"sync"
	"time"

	"github.com/ocx/paygate/internal/mapping"
)

// DocumentVersion is one snapshot in a MappingDocument's history.
type DocumentVersion struct {
	Version   int
	Document  *mapping.Document
	Active    bool
	CreatedAt time.Time
}

// VersionStore keeps every published version of every named
// MappingDocument, supporting rollback to a prior version — the
// supplemented feature grounded on the teacher's policy version store.
type VersionStore struct {
	mu      sync.RWMutex
	history map[string][]DocumentVersion // documentName -> versions, oldest first
}

// NewVersionStore returns an empty version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{history: make(map[string][]DocumentVersion)}
}

// Push validates and records a new version of a document, marking it
// active and deactivating the previous active version.
func (v *VersionStore) Push(doc *mapping.Document) (DocumentVersion, error) {
	if err := doc.Validate(); err != nil {
		return DocumentVersion{}, fmt.Errorf("policy: invalid document %q: %w", doc.Name, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	versions := v.history[doc.Name]
	nextVersion := 1
	if len(versions) > 0 {
		nextVersion = versions[len(versions)-1].Version + 1
		for i := range versions {
			versions[i].Active = false
		}
	}

	clone := *doc
	clone.Version = nextVersion
	clone.Active = true

	dv := DocumentVersion{Version: nextVersion, Document: &clone, Active: true, CreatedAt: time.Now()}
	versions = append(versions, dv)
	v.history[doc.Name] = versions
	return dv, nil
}

// Rollback reactivates a previously pushed version, deactivating whatever
// is currently active. Returns an error if the named version was never
// pushed.
func (v *VersionStore) Rollback(name string, version int) (*mapping.Document, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	versions := v.history[name]
	for i := range versions {
		versions[i].Active = versions[i].Version == version
	}
	for _, dv := range versions {
		if dv.Version == version {
			v.history[name] = versions
			return dv.Document, nil
		}
	}
	return nil, fmt.Errorf("policy: no version %d for document %q", version, name)
}

// Active returns the currently active version of a named document, if any.
func (v *VersionStore) Active(name string) (*mapping.Document, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, dv := range v.history[name] {
		if dv.Active {
			return dv.Document, true
		}
	}
	return nil, false
}

// History returns every recorded version of a named document, oldest
// first.
func (v *VersionStore) History(name string) []DocumentVersion {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]DocumentVersion, len(v.history[name]))
	copy(out, v.history[name])
	return out
}
