package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"identityshelf/internal/schema/models"
	"identityshelf/pkg/domain"
	"identityshelf/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded schema store for tests and single-node
// deployments without Postgres. It implements both service.TypeStore and
// service.MappingStore.
type InMemory struct {
	mu sync.RWMutex

	identityTypes   map[domain.IdentityTypeID]models.IdentityType
	attributeTypes  map[domain.AttributeTypeID]models.AttributeType
	identifierTypes map[domain.IdentifierTypeID]models.IdentifierType

	attributeMappings  map[domain.AttributeMappingID]models.AttributeMapping
	identifierMappings map[domain.IdentifierMappingID]models.IdentifierMapping
}

// NewInMemory constructs an empty in-memory schema store.
func NewInMemory() *InMemory {
	return &InMemory{
		identityTypes:      make(map[domain.IdentityTypeID]models.IdentityType),
		attributeTypes:     make(map[domain.AttributeTypeID]models.AttributeType),
		identifierTypes:    make(map[domain.IdentifierTypeID]models.IdentifierType),
		attributeMappings:  make(map[domain.AttributeMappingID]models.AttributeMapping),
		identifierMappings: make(map[domain.IdentifierMappingID]models.IdentifierMapping),
	}
}

// ---------------------------------------------------------------------------
// Identity types
// ---------------------------------------------------------------------------

func (s *InMemory) CreateIdentityType(_ context.Context, t *models.IdentityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identityTypes {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrConflict
		}
	}
	s.identityTypes[t.ID] = *t
	return nil
}

func (s *InMemory) FindIdentityTypeByID(_ context.Context, id domain.IdentityTypeID) (*models.IdentityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.identityTypes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemory) FindIdentityTypeByName(_ context.Context, name string) (*models.IdentityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.identityTypes {
		if strings.EqualFold(t.Name, name) {
			t := t
			return &t, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListIdentityTypes(_ context.Context) ([]models.IdentityType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.IdentityType, 0, len(s.identityTypes))
	for _, t := range s.identityTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) SaveIdentityType(_ context.Context, t *models.IdentityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identityTypes[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.identityTypes[t.ID] = *t
	return nil
}

// ---------------------------------------------------------------------------
// Attribute types
// ---------------------------------------------------------------------------

func (s *InMemory) CreateAttributeType(_ context.Context, t *models.AttributeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.attributeTypes {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrConflict
		}
	}
	s.attributeTypes[t.ID] = *t
	return nil
}

func (s *InMemory) FindAttributeTypeByID(_ context.Context, id domain.AttributeTypeID) (*models.AttributeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.attributeTypes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemory) FindAttributeTypeByName(_ context.Context, name string) (*models.AttributeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.attributeTypes {
		if strings.EqualFold(t.Name, name) {
			t := t
			return &t, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListAttributeTypes(_ context.Context) ([]models.AttributeType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AttributeType, 0, len(s.attributeTypes))
	for _, t := range s.attributeTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) SaveAttributeType(_ context.Context, t *models.AttributeType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributeTypes[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.attributeTypes[t.ID] = *t
	return nil
}

// ---------------------------------------------------------------------------
// Identifier types
// ---------------------------------------------------------------------------

func (s *InMemory) CreateIdentifierType(_ context.Context, t *models.IdentifierType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.identifierTypes {
		if strings.EqualFold(existing.Name, t.Name) {
			return sentinel.ErrConflict
		}
	}
	s.identifierTypes[t.ID] = *t
	return nil
}

func (s *InMemory) FindIdentifierTypeByID(_ context.Context, id domain.IdentifierTypeID) (*models.IdentifierType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.identifierTypes[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemory) FindIdentifierTypeByName(_ context.Context, name string) (*models.IdentifierType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.identifierTypes {
		if strings.EqualFold(t.Name, name) {
			t := t
			return &t, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListIdentifierTypes(_ context.Context) ([]models.IdentifierType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.IdentifierType, 0, len(s.identifierTypes))
	for _, t := range s.identifierTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *InMemory) SaveIdentifierType(_ context.Context, t *models.IdentifierType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identifierTypes[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.identifierTypes[t.ID] = *t
	return nil
}

// ---------------------------------------------------------------------------
// Attribute mappings
// ---------------------------------------------------------------------------

func (s *InMemory) CreateAttributeMapping(_ context.Context, m *models.AttributeMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.AttributeType == nil {
		return sentinel.ErrInvalidState
	}
	for _, existing := range s.attributeMappings {
		if existing.Active && existing.IdentityTypeID == m.IdentityTypeID &&
			existing.AttributeType != nil && existing.AttributeType.ID == m.AttributeType.ID {
			return sentinel.ErrConflict
		}
	}
	s.attributeMappings[m.ID] = cloneAttributeMapping(*m)
	return nil
}

func (s *InMemory) FindAttributeMapping(_ context.Context, id domain.AttributeMappingID) (*models.AttributeMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.attributeMappings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	m = cloneAttributeMapping(m)
	return &m, nil
}

func (s *InMemory) ListActiveAttributeMappings(_ context.Context, identityTypeID domain.IdentityTypeID) ([]models.AttributeMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AttributeMapping
	for _, m := range s.attributeMappings {
		if m.Active && m.IdentityTypeID == identityTypeID {
			out = append(out, cloneAttributeMapping(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *InMemory) SaveAttributeMapping(_ context.Context, m *models.AttributeMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributeMappings[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.attributeMappings[m.ID] = cloneAttributeMapping(*m)
	return nil
}

func (s *InMemory) DeleteAttributeMapping(_ context.Context, id domain.AttributeMappingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attributeMappings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.attributeMappings, id)
	return nil
}

// ---------------------------------------------------------------------------
// Identifier mappings
// ---------------------------------------------------------------------------

func (s *InMemory) CreateIdentifierMapping(_ context.Context, m *models.IdentifierMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.IdentifierType == nil {
		return sentinel.ErrInvalidState
	}
	for _, existing := range s.identifierMappings {
		if existing.Active && existing.IdentityTypeID == m.IdentityTypeID &&
			existing.IdentifierType != nil && existing.IdentifierType.ID == m.IdentifierType.ID {
			return sentinel.ErrConflict
		}
	}
	s.identifierMappings[m.ID] = cloneIdentifierMapping(*m)
	return nil
}

func (s *InMemory) FindIdentifierMapping(_ context.Context, id domain.IdentifierMappingID) (*models.IdentifierMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.identifierMappings[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	m = cloneIdentifierMapping(m)
	return &m, nil
}

func (s *InMemory) FindActiveIdentifierMapping(_ context.Context, identityTypeID domain.IdentityTypeID, identifierTypeID domain.IdentifierTypeID) (*models.IdentifierMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.identifierMappings {
		if m.Active && m.IdentityTypeID == identityTypeID &&
			m.IdentifierType != nil && m.IdentifierType.ID == identifierTypeID {
			m = cloneIdentifierMapping(m)
			return &m, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListActiveIdentifierMappings(_ context.Context, identityTypeID domain.IdentityTypeID) ([]models.IdentifierMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IdentifierMapping
	for _, m := range s.identifierMappings {
		if m.Active && m.IdentityTypeID == identityTypeID {
			out = append(out, cloneIdentifierMapping(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *InMemory) SaveIdentifierMapping(_ context.Context, m *models.IdentifierMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identifierMappings[m.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.identifierMappings[m.ID] = cloneIdentifierMapping(*m)
	return nil
}

func (s *InMemory) DeleteIdentifierMapping(_ context.Context, id domain.IdentifierMappingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identifierMappings[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.identifierMappings, id)
	return nil
}

// Mappings carry a pointer to their base type; clone it so callers cannot
// mutate stored state through a returned snapshot.
func cloneAttributeMapping(m models.AttributeMapping) models.AttributeMapping {
	if m.AttributeType != nil {
		at := *m.AttributeType
		m.AttributeType = &at
	}
	return m
}

func cloneIdentifierMapping(m models.IdentifierMapping) models.IdentifierMapping {
	if m.IdentifierType != nil {
		it := *m.IdentifierType
		m.IdentifierType = &it
	}
	return m
}
