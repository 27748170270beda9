// Package access holds the single authorization choke point. Every
// document read and every administrative mutation is decided here; handlers
// never consult the grant registry directly.
package access

import (
	"context"
	"fmt"

	"docvault/internal/store"
)

// Operation is the kind of action being authorized.
type Operation int

const (
	// OpReadDocument is a download or locator resolution for one document.
	OpReadDocument Operation = iota
	// OpAdminister covers every administrative mutation.
	OpAdminister
)

// Decision is the gate's verdict. The two deny variants surface
// differently: anonymous callers are challenged to log in, authenticated
// ones are bounced back to their own document list.
type Decision int

const (
	Allow Decision = iota
	DenyAnonymous
	DenyForbidden
)

// Gate decides allow/deny from the grant registry and the admin flag.
// It reads grants, never mutates them.
type Gate struct {
	grants  store.GrantRegistry
	catalog store.Catalog
}

func NewGate(grants store.GrantRegistry, catalog store.Catalog) *Gate {
	return &Gate{grants: grants, catalog: catalog}
}

// Authorize applies the two-tier model: admin is a universal override,
// otherwise a read needs an explicit grant (or a public document). ident is
// nil for anonymous callers; doc is nil for administrative operations.
func (g *Gate) Authorize(ctx context.Context, ident *store.Identity, op Operation, doc *store.Document) (Decision, error) {
	switch op {
	case OpAdminister:
		if ident == nil {
			return DenyAnonymous, nil
		}
		if ident.IsAdmin {
			return Allow, nil
		}
		return DenyForbidden, nil

	case OpReadDocument:
		if doc == nil {
			return DenyForbidden, fmt.Errorf("read authorization without a document")
		}
		if doc.Public {
			return Allow, nil
		}
		if ident == nil {
			return DenyAnonymous, nil
		}
		if ident.IsAdmin {
			return Allow, nil
		}
		granted, err := g.grants.IsGranted(ctx, ident.ID, doc.ID)
		if err != nil {
			return DenyForbidden, err
		}
		if granted {
			return Allow, nil
		}
		return DenyForbidden, nil
	}
	return DenyForbidden, fmt.Errorf("unknown operation %d", op)
}

// ListVisible answers "which documents may this identity see": the full
// catalog for admins, exactly the granted set for everyone else.
func (g *Gate) ListVisible(ctx context.Context, ident store.Identity) ([]store.Document, error) {
	if ident.IsAdmin {
		return g.catalog.ListAll(ctx)
	}
	return g.grants.ListFor(ctx, ident.ID)
}
