package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory implementation of all three store contracts,
// used by tests. One mutex guards the whole dataset so the same atomicity
// guarantees hold as with the database (concurrent duplicate creates see
// exactly one winner, duplicate grants converge to one edge).
type Memory struct {
	mu     sync.Mutex
	idents map[string]*memIdentity // keyed by id
	docs   map[string]Document     // keyed by id
	edges  map[Grant]struct{}
}

type memIdentity struct {
	Identity
	passwordHash string
}

func NewMemory() *Memory {
	return &Memory{
		idents: make(map[string]*memIdentity),
		docs:   make(map[string]Document),
		edges:  make(map[Grant]struct{}),
	}
}

// Credentials returns the CredentialStore view.
func (m *Memory) Credentials() CredentialStore { return (*memCredentials)(m) }

// Catalog returns the Catalog view.
func (m *Memory) Catalog() Catalog { return (*memCatalog)(m) }

// Grants returns the GrantRegistry view.
func (m *Memory) Grants() GrantRegistry { return (*memGrants)(m) }

type memCredentials Memory

func (s *memCredentials) Create(_ context.Context, username, password string, isAdmin bool) (Identity, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ident := range s.idents {
		if ident.Username == username {
			return Identity{}, ErrDuplicateIdentity
		}
	}

	ident := &memIdentity{
		Identity:     Identity{ID: uuid.NewString(), Username: username, IsAdmin: isAdmin},
		passwordHash: hash,
	}
	s.idents[ident.ID] = ident
	return ident.Identity, nil
}

func (s *memCredentials) Verify(_ context.Context, username, password string) (Identity, error) {
	s.mu.Lock()
	var found *memIdentity
	for _, ident := range s.idents {
		if ident.Username == username {
			found = ident
			break
		}
	}
	var hash string
	var out Identity
	if found != nil {
		hash = found.passwordHash
		out = found.Identity
	}
	s.mu.Unlock()

	// Hash comparison happens outside the lock; bcrypt is slow on purpose.
	if found == nil || !CheckPassword(password, hash) {
		return Identity{}, ErrInvalidCredentials
	}
	return out, nil
}

func (s *memCredentials) ByID(_ context.Context, id string) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.idents[id]
	if !ok {
		return Identity{}, ErrNotFound
	}
	return ident.Identity, nil
}

func (s *memCredentials) List(_ context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Identity, 0, len(s.idents))
	for _, ident := range s.idents {
		out = append(out, ident.Identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memCredentials) SetPassword(_ context.Context, id, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.idents[id]
	if !ok {
		return ErrNotFound
	}
	ident.passwordHash = hash
	ident.MustChangePassword = false
	return nil
}

func (s *memCredentials) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.idents[id]
	if !ok {
		return ErrNotFound
	}
	if ident.IsAdmin {
		admins := 0
		for _, other := range s.idents {
			if other.IsAdmin {
				admins++
			}
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	delete(s.idents, id)
	for edge := range s.edges {
		if edge.IdentityID == id {
			delete(s.edges, edge)
		}
	}
	return nil
}

func (s *memCredentials) AdminCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ident := range s.idents {
		if ident.IsAdmin {
			n++
		}
	}
	return n, nil
}

func (s *memCredentials) MarkMustChange(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.idents[id]
	if !ok {
		return ErrNotFound
	}
	ident.MustChangePassword = true
	return nil
}

type memCatalog Memory

func (s *memCatalog) Register(_ context.Context, filename, objectKey string, public bool) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := Document{ID: uuid.NewString(), Filename: filename, ObjectKey: objectKey, Public: public}
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *memCatalog) ByID(_ context.Context, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *memCatalog) ListAll(_ context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedDocs(s.docs, func(Document) bool { return true }), nil
}

func (s *memCatalog) ListPublic(_ context.Context) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedDocs(s.docs, func(d Document) bool { return d.Public }), nil
}

func (s *memCatalog) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return ErrNotFound
	}
	delete(s.docs, id)
	for edge := range s.edges {
		if edge.DocumentID == id {
			delete(s.edges, edge)
		}
	}
	return nil
}

type memGrants Memory

func (s *memGrants) Grant(_ context.Context, identityID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[Grant{IdentityID: identityID, DocumentID: documentID}] = struct{}{}
	return nil
}

func (s *memGrants) Revoke(_ context.Context, identityID, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, Grant{IdentityID: identityID, DocumentID: documentID})
	return nil
}

func (s *memGrants) IsGranted(_ context.Context, identityID, documentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[Grant{IdentityID: identityID, DocumentID: documentID}]
	return ok, nil
}

func (s *memGrants) ListFor(_ context.Context, identityID string) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	granted := make(map[string]bool)
	for edge := range s.edges {
		if edge.IdentityID == identityID {
			granted[edge.DocumentID] = true
		}
	}
	return sortedDocs(s.docs, func(d Document) bool { return granted[d.ID] }), nil
}

func (s *memGrants) ListEdges(_ context.Context) ([]Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Grant, 0, len(s.edges))
	for edge := range s.edges {
		out = append(out, edge)
	}
	return out, nil
}

func sortedDocs(docs map[string]Document, keep func(Document) bool) []Document {
	var out []Document
	for _, d := range docs {
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out
}

var (
	_ CredentialStore = (*memCredentials)(nil)
	_ Catalog         = (*memCatalog)(nil)
	_ GrantRegistry   = (*memGrants)(nil)
)
