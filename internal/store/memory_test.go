package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_CreateAndVerify(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	ident, err := creds.Create(ctx, "bob", "pw123456", false)
	require.NoError(t, err)
	assert.Equal(t, "bob", ident.Username)
	assert.False(t, ident.IsAdmin)
	assert.NotEmpty(t, ident.ID)

	got, err := creds.Verify(ctx, "bob", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, ident.ID, got.ID)
}

func TestCredentials_VerifyFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	_, err := creds.Create(ctx, "bob", "pw123456", false)
	require.NoError(t, err)

	_, wrongPass := creds.Verify(ctx, "bob", "nope")
	_, unknownUser := creds.Verify(ctx, "nobody", "whatever")

	assert.ErrorIs(t, wrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPass, unknownUser)
}

func TestCredentials_DuplicateUsername(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	first, err := creds.Create(ctx, "dupe", "first-pw", true)
	require.NoError(t, err)

	_, err = creds.Create(ctx, "dupe", "second-pw", false)
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	// The first identity's data survives unchanged.
	got, err := creds.Verify(ctx, "dupe", "first-pw")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.IsAdmin)
}

func TestCredentials_ConcurrentCreateOneWinner(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = creds.Create(ctx, "dupe", "pw123456", false)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, ErrDuplicateIdentity)
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCredentials_SetPasswordClearsMustChange(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	ident, err := creds.Create(ctx, "admin", "admin", true)
	require.NoError(t, err)
	require.NoError(t, creds.MarkMustChange(ctx, ident.ID))

	got, err := creds.ByID(ctx, ident.ID)
	require.NoError(t, err)
	assert.True(t, got.MustChangePassword)

	require.NoError(t, creds.SetPassword(ctx, ident.ID, "rotated-pw"))

	got, err = creds.ByID(ctx, ident.ID)
	require.NoError(t, err)
	assert.False(t, got.MustChangePassword)

	_, err = creds.Verify(ctx, "admin", "admin")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = creds.Verify(ctx, "admin", "rotated-pw")
	assert.NoError(t, err)
}

func TestCredentials_DeleteLastAdminRefused(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	admin, err := creds.Create(ctx, "admin", "pw123456", true)
	require.NoError(t, err)

	err = creds.Delete(ctx, admin.ID)
	assert.ErrorIs(t, err, ErrLastAdmin)

	// A second admin unblocks deletion.
	_, err = creds.Create(ctx, "admin2", "pw123456", true)
	require.NoError(t, err)
	assert.NoError(t, creds.Delete(ctx, admin.ID))
}

func TestCredentials_ConcurrentAdminDeletesLeaveOne(t *testing.T) {
	ctx := context.Background()
	creds := NewMemory().Credentials()

	a, err := creds.Create(ctx, "admin_a", "pw123456", true)
	require.NoError(t, err)
	b, err := creds.Create(ctx, "admin_b", "pw123456", true)
	require.NoError(t, err)

	// Deleting both remaining admins concurrently: exactly one delete wins,
	// the other is refused, and an admin always survives.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			errs[i] = creds.Delete(ctx, id)
		}(i, id)
	}
	wg.Wait()

	refused := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrLastAdmin)
			refused++
		}
	}
	assert.Equal(t, 1, refused)

	n, err := creds.AdminCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGrants_Idempotent(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	creds, catalog, grants := mem.Credentials(), mem.Catalog(), mem.Grants()

	bob, err := creds.Create(ctx, "bob", "pw123456", false)
	require.NoError(t, err)
	doc, err := catalog.Register(ctx, "d1.pdf", "uploads/d1", false)
	require.NoError(t, err)

	require.NoError(t, grants.Grant(ctx, bob.ID, doc.ID))
	once, err := grants.ListFor(ctx, bob.ID)
	require.NoError(t, err)

	require.NoError(t, grants.Grant(ctx, bob.ID, doc.ID))
	twice, err := grants.ListFor(ctx, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
	assert.Equal(t, doc.ID, twice[0].ID)
}

func TestGrants_ListForIsExact(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	creds, catalog, grants := mem.Credentials(), mem.Catalog(), mem.Grants()

	bob, _ := creds.Create(ctx, "bob", "pw123456", false)
	carol, _ := creds.Create(ctx, "carol", "pw123456", false)

	d1, _ := catalog.Register(ctx, "a.pdf", "uploads/a", false)
	d2, _ := catalog.Register(ctx, "b.pdf", "uploads/b", false)
	require.NoError(t, grants.Grant(ctx, bob.ID, d1.ID))
	require.NoError(t, grants.Grant(ctx, carol.ID, d2.ID))

	bobDocs, err := grants.ListFor(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, bobDocs, 1)
	assert.Equal(t, d1.ID, bobDocs[0].ID)

	carolDocs, err := grants.ListFor(ctx, carol.ID)
	require.NoError(t, err)
	require.Len(t, carolDocs, 1)
	assert.Equal(t, d2.ID, carolDocs[0].ID)
}

func TestGrants_RevokeRemovesOneEdge(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	creds, catalog, grants := mem.Credentials(), mem.Catalog(), mem.Grants()

	bob, _ := creds.Create(ctx, "bob", "pw123456", false)
	d1, _ := catalog.Register(ctx, "a.pdf", "uploads/a", false)
	d2, _ := catalog.Register(ctx, "b.pdf", "uploads/b", false)
	require.NoError(t, grants.Grant(ctx, bob.ID, d1.ID))
	require.NoError(t, grants.Grant(ctx, bob.ID, d2.ID))

	require.NoError(t, grants.Revoke(ctx, bob.ID, d1.ID))

	ok, err := grants.IsGranted(ctx, bob.ID, d1.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = grants.IsGranted(ctx, bob.ID, d2.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCatalog_DeleteCascadesGrants(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	creds, catalog, grants := mem.Credentials(), mem.Catalog(), mem.Grants()

	bob, _ := creds.Create(ctx, "bob", "pw123456", false)
	doc, _ := catalog.Register(ctx, "a.pdf", "uploads/a", false)
	require.NoError(t, grants.Grant(ctx, bob.ID, doc.ID))

	require.NoError(t, catalog.Delete(ctx, doc.ID))

	_, err := catalog.ByID(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	edges, err := grants.ListEdges(ctx)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestCatalog_ListOrderIsStable(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemory().Catalog()

	for _, name := range []string{"zeta.pdf", "alpha.pdf", "mid.pdf"} {
		_, err := catalog.Register(ctx, name, "uploads/"+name, false)
		require.NoError(t, err)
	}

	docs, err := catalog.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "alpha.pdf", docs[0].Filename)
	assert.Equal(t, "mid.pdf", docs[1].Filename)
	assert.Equal(t, "zeta.pdf", docs[2].Filename)
}

func TestCatalog_ListPublic(t *testing.T) {
	ctx := context.Background()
	catalog := NewMemory().Catalog()

	_, err := catalog.Register(ctx, "private.pdf", "uploads/private", false)
	require.NoError(t, err)
	pub, err := catalog.Register(ctx, "world.zip", "uploads/world", true)
	require.NoError(t, err)

	docs, err := catalog.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, pub.ID, docs[0].ID)
}
