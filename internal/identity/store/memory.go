package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"identityshelf/internal/identity/models"
	"identityshelf/internal/identity/service"
	"identityshelf/pkg/domain"
	"identityshelf/pkg/platform/sentinel"
)

// The in-memory stores back tests and single-node deployments without
// Postgres. Each entity gets its own mutex-guarded map; the NopRunner makes
// multi-store writes non-atomic, which the memory mode accepts.

// MemoryIdentities implements service.IdentityStore.
type MemoryIdentities struct {
	mu         sync.RWMutex
	identities map[domain.IdentityID]models.Identity
}

// NewMemoryIdentities constructs an empty identity store.
func NewMemoryIdentities() *MemoryIdentities {
	return &MemoryIdentities{identities: make(map[domain.IdentityID]models.Identity)}
}

func (s *MemoryIdentities) Create(_ context.Context, i *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[i.ID]; ok {
		return sentinel.ErrConflict
	}
	s.identities[i.ID] = *i
	return nil
}

func (s *MemoryIdentities) FindByID(_ context.Context, id domain.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identities[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &i, nil
}

func (s *MemoryIdentities) List(_ context.Context, f service.IdentityFilter) ([]models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var all []models.Identity
	for _, i := range s.identities {
		if !f.IdentityTypeID.IsNil() && i.IdentityTypeID != f.IdentityTypeID {
			continue
		}
		if f.Status != "" && i.Status != f.Status {
			continue
		}
		all = append(all, i)
	}
	sort.Slice(all, func(a, b int) bool {
		if !all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].CreatedAt.Before(all[b].CreatedAt)
		}
		return all[a].ID.String() < all[b].ID.String()
	})
	if f.Offset >= len(all) {
		return nil, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, nil
}

func (s *MemoryIdentities) Save(_ context.Context, i *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[i.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.identities[i.ID] = *i
	return nil
}

func (s *MemoryIdentities) Delete(_ context.Context, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.identities, id)
	return nil
}

// MemoryValues implements service.ValueStore.
type MemoryValues struct {
	mu     sync.RWMutex
	values map[domain.ValueID]models.AttributeValueRecord
}

// NewMemoryValues constructs an empty attribute value store.
func NewMemoryValues() *MemoryValues {
	return &MemoryValues{values: make(map[domain.ValueID]models.AttributeValueRecord)}
}

// Upsert replaces any existing value for the (identity, attribute type)
// pair, keeping the original row identity and creation time.
func (s *MemoryValues) Upsert(_ context.Context, rec *models.AttributeValueRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.values {
		if existing.IdentityID == rec.IdentityID && existing.AttributeTypeID == rec.AttributeTypeID {
			rec.ID = existing.ID
			rec.CreatedAt = existing.CreatedAt
			s.values[id] = *rec
			return nil
		}
	}
	s.values[rec.ID] = *rec
	return nil
}

func (s *MemoryValues) Find(_ context.Context, identityID domain.IdentityID, attributeTypeID domain.AttributeTypeID) (*models.AttributeValueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.values {
		if rec.IdentityID == identityID && rec.AttributeTypeID == attributeTypeID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryValues) ListByIdentity(_ context.Context, identityID domain.IdentityID) ([]models.AttributeValueRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AttributeValueRecord
	for _, rec := range s.values {
		if rec.IdentityID == identityID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].AttributeName < out[b].AttributeName })
	return out, nil
}

func (s *MemoryValues) DeleteByIdentity(_ context.Context, identityID domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.values {
		if rec.IdentityID == identityID {
			delete(s.values, id)
		}
	}
	return nil
}

// MemoryIdentifiers implements service.IdentifierStore.
type MemoryIdentifiers struct {
	mu          sync.RWMutex
	identifiers map[domain.IdentifierID]models.Identifier
}

// NewMemoryIdentifiers constructs an empty identifier store.
func NewMemoryIdentifiers() *MemoryIdentifiers {
	return &MemoryIdentifiers{identifiers: make(map[domain.IdentifierID]models.Identifier)}
}

func (s *MemoryIdentifiers) Create(_ context.Context, i *models.Identifier, enforceUnique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enforceUnique && s.activeValueTakenLocked(i.IdentifierTypeID, i.Value, i.ID) {
		return sentinel.ErrConflict
	}
	s.identifiers[i.ID] = *i
	return nil
}

func (s *MemoryIdentifiers) FindByID(_ context.Context, id domain.IdentifierID) (*models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.identifiers[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &i, nil
}

func (s *MemoryIdentifiers) Save(_ context.Context, i *models.Identifier, enforceUnique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identifiers[i.ID]; !ok {
		return sentinel.ErrNotFound
	}
	if enforceUnique && i.Active && s.activeValueTakenLocked(i.IdentifierTypeID, i.Value, i.ID) {
		return sentinel.ErrConflict
	}
	s.identifiers[i.ID] = *i
	return nil
}

func (s *MemoryIdentifiers) ListByIdentity(_ context.Context, identityID domain.IdentityID) ([]models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Identifier
	for _, i := range s.identifiers {
		if i.IdentityID == identityID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Primary != out[b].Primary {
			return out[a].Primary
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (s *MemoryIdentifiers) FindPrimary(_ context.Context, identityID domain.IdentityID) (*models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.identifiers {
		if i.IdentityID == identityID && i.Active && i.Primary {
			i := i
			return &i, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemoryIdentifiers) ExistsActiveValue(_ context.Context, typeID domain.IdentifierTypeID, value string, exclude domain.IdentifierID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeValueTakenLocked(typeID, value, exclude), nil
}

func (s *MemoryIdentifiers) Search(_ context.Context, value string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error) {
	return s.search(value, typeIDs, limit, strings.EqualFold)
}

func (s *MemoryIdentifiers) SuggestByPrefix(_ context.Context, prefix string, typeIDs []domain.IdentifierTypeID, limit int) ([]models.Identifier, error) {
	return s.search(prefix, typeIDs, limit, func(candidate, query string) bool {
		return strings.HasPrefix(strings.ToLower(candidate), strings.ToLower(query))
	})
}

func (s *MemoryIdentifiers) DeleteByIdentity(_ context.Context, identityID domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, i := range s.identifiers {
		if i.IdentityID == identityID {
			delete(s.identifiers, id)
		}
	}
	return nil
}

func (s *MemoryIdentifiers) search(query string, typeIDs []domain.IdentifierTypeID, limit int, match func(candidate, query string) bool) ([]models.Identifier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[domain.IdentifierTypeID]struct{}, len(typeIDs))
	for _, id := range typeIDs {
		allowed[id] = struct{}{}
	}

	var out []models.Identifier
	for _, i := range s.identifiers {
		if !i.Active {
			continue
		}
		if _, ok := allowed[i.IdentifierTypeID]; !ok {
			continue
		}
		if match(i.Value, query) {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Value < out[b].Value })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryIdentifiers) activeValueTakenLocked(typeID domain.IdentifierTypeID, value string, exclude domain.IdentifierID) bool {
	for _, i := range s.identifiers {
		if i.ID == exclude {
			continue
		}
		if i.Active && i.IdentifierTypeID == typeID && i.Value == value {
			return true
		}
	}
	return false
}
