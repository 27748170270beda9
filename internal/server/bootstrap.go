package server

import (
	"context"
	"fmt"
	"log"

	"docvault/internal/store"
)

const (
	bootstrapUsername = "admin"
	bootstrapPassword = "admin"
)

// EnsureBootstrapAdmin creates the initial admin account when no admin
// exists yet, so a fresh deployment is reachable. The account is created
// with a well-known password and flagged for a forced change; the log
// warning repeats on every boot until the password is rotated.
func EnsureBootstrapAdmin(ctx context.Context, creds store.CredentialStore) error {
	n, err := creds.AdminCount(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		warnStaleBootstrapPassword(ctx, creds)
		return nil
	}

	ident, err := creds.Create(ctx, bootstrapUsername, bootstrapPassword, true)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	if err := creds.MarkMustChange(ctx, ident.ID); err != nil {
		return fmt.Errorf("flag bootstrap admin: %w", err)
	}

	log.Printf("msg=bootstrap_admin_created username=%s", bootstrapUsername)
	log.Printf("WARNING: bootstrap admin uses a well-known password; change it immediately")
	return nil
}

// warnStaleBootstrapPassword repeats the startup warning for any admin
// still carrying the forced-change flag.
func warnStaleBootstrapPassword(ctx context.Context, creds store.CredentialStore) {
	idents, err := creds.List(ctx)
	if err != nil {
		return
	}
	for _, ident := range idents {
		if ident.IsAdmin && ident.MustChangePassword {
			log.Printf("WARNING: admin %q has not changed the bootstrap password", ident.Username)
		}
	}
}
