// Package store holds the persistent model of the service: identities,
// documents, and the many-to-many grant relation between them. It exposes
// narrow interfaces so the HTTP layer never touches SQL directly, with a
// Postgres implementation for production and an in-memory one for tests.
package store

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Sentinel errors surfaced by store implementations. Callers match them
// with errors.Is.
var (
	// ErrDuplicateIdentity is returned by Create when the username is taken.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrInvalidCredentials is the single failure kind for a failed Verify.
	// Unknown username and wrong password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotFound is returned when an identity or document id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrLastAdmin is returned when deleting the only remaining admin.
	ErrLastAdmin = errors.New("cannot delete the last admin")
)

// Identity is an authenticated principal. Usernames are unique and immutable
// once created; the password hash never leaves the store.
type Identity struct {
	ID                 string
	Username           string
	IsAdmin            bool
	MustChangePassword bool
}

// Document is a distributable file. ObjectKey is the opaque locator of the
// underlying bytes in blob storage; only the download path resolves it.
type Document struct {
	ID        string
	Filename  string
	ObjectKey string
	Public    bool
}

// Grant is one edge of the user/document relation.
type Grant struct {
	IdentityID string
	DocumentID string
}

// CredentialStore is the only component that hashes or verifies passwords.
type CredentialStore interface {
	// Create adds an identity with a freshly hashed password. Fails with
	// ErrDuplicateIdentity if the username exists (exact, case-sensitive
	// match, enforced by a uniqueness constraint so concurrent creates
	// converge to one winner).
	Create(ctx context.Context, username, password string, isAdmin bool) (Identity, error)
	// Verify returns the identity iff username exists and the password
	// matches. Any failure is ErrInvalidCredentials.
	Verify(ctx context.Context, username, password string) (Identity, error)
	ByID(ctx context.Context, id string) (Identity, error)
	List(ctx context.Context) ([]Identity, error)
	// SetPassword rehashes and stores a new password and clears the
	// must-change flag.
	SetPassword(ctx context.Context, id, password string) error
	// MarkMustChange flags an identity as carrying a well-known bootstrap
	// password that has to be rotated.
	MarkMustChange(ctx context.Context, id string) error
	// Delete removes an identity and its grants. Refuses with ErrLastAdmin
	// when the target is the only admin left.
	Delete(ctx context.Context, id string) error
	AdminCount(ctx context.Context) (int, error)
}

// Catalog stores document records. Register is called only after the bytes
// are safely in blob storage, so a catalog row always has a valid locator.
type Catalog interface {
	Register(ctx context.Context, filename, objectKey string, public bool) (Document, error)
	ByID(ctx context.Context, id string) (Document, error)
	ListAll(ctx context.Context) ([]Document, error)
	ListPublic(ctx context.Context) ([]Document, error)
	// Delete removes the record and every grant pointing at it.
	Delete(ctx context.Context, id string) error
}

// GrantRegistry is the many-to-many relation. Grant is idempotent: granting
// an existing edge is not an error and leaves a single edge.
type GrantRegistry interface {
	Grant(ctx context.Context, identityID, documentID string) error
	Revoke(ctx context.Context, identityID, documentID string) error
	IsGranted(ctx context.Context, identityID, documentID string) (bool, error)
	// ListFor returns the documents granted to one identity, ordered by
	// filename for stable listings.
	ListFor(ctx context.Context, identityID string) ([]Document, error)
	ListEdges(ctx context.Context) ([]Grant, error)
}

// HashPassword produces a bcrypt hash. Cost 12 balances login latency
// against brute-force resistance.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
