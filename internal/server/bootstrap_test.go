package server

import (
	"testing"

	"docvault/internal/store"
)

func TestEnsureBootstrapAdmin(t *testing.T) {
	mem := store.NewMemory()
	creds := mem.Credentials()
	ctx := t.Context()

	if err := EnsureBootstrapAdmin(ctx, creds); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	ident, err := creds.Verify(ctx, "admin", "admin")
	if err != nil {
		t.Fatalf("bootstrap admin cannot log in: %v", err)
	}
	if !ident.IsAdmin {
		t.Error("bootstrap account is not an admin")
	}
	if !ident.MustChangePassword {
		t.Error("bootstrap account not flagged for password change")
	}

	// A second run is a no-op.
	if err := EnsureBootstrapAdmin(ctx, creds); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}
	idents, err := creds.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(idents) != 1 {
		t.Fatalf("accounts after double bootstrap = %d, want 1", len(idents))
	}
}

func TestEnsureBootstrapAdminSkipsWhenAdminExists(t *testing.T) {
	mem := store.NewMemory()
	creds := mem.Credentials()
	ctx := t.Context()

	if _, err := creds.Create(ctx, "root", "password1", true); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := EnsureBootstrapAdmin(ctx, creds); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if _, err := creds.Verify(ctx, "admin", "admin"); err == nil {
		t.Error("default admin created despite existing admin")
	}
}
