package scene

// Store exposes subject retrieval for HTTP handlers and the session host.
type Store interface {
	List() []Subject
	FindByID(id string) (Subject, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Subject
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied subjects.
func NewMemoryStore(items []Subject) *MemoryStore {
	return &MemoryStore{items: append([]Subject(nil), items...)}
}

// List returns the subject list.
func (s *MemoryStore) List() []Subject {
	return append([]Subject(nil), s.items...)
}

// FindByID looks up a subject by identifier.
func (s *MemoryStore) FindByID(id string) (Subject, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Subject{}, false
}
