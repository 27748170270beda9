package server

import (
	"net/http"
	"testing"
)

func TestAdminCreateUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	cookie := env.login("root", "password1")

	resp := env.doJSON(http.MethodPost, "/admin/users", cookie, map[string]any{
		"username": "newuser",
		"password": "password1",
	})
	wantStatus(t, resp, http.StatusCreated)
	var created userJSON
	decodeBody(t, resp, &created)
	if created.Username != "newuser" || created.IsAdmin {
		t.Errorf("created = %+v", created)
	}

	// The new account can log in immediately.
	env.login("newuser", "password1")
}

func TestAdminCreateUserDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	env.addUser("bob", "password1", false)
	cookie := env.login("root", "password1")

	resp := env.doJSON(http.MethodPost, "/admin/users", cookie, map[string]any{
		"username": "bob",
		"password": "password1",
	})
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestAdminCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	cookie := env.login("root", "password1")

	cases := []map[string]any{
		{"username": "ab", "password": "password1"},
		{"username": "bad name", "password": "password1"},
		{"username": "newuser", "password": "short1"},
		{"username": "newuser", "password": "nonumbers"},
	}
	for _, c := range cases {
		resp := env.doJSON(http.MethodPost, "/admin/users", cookie, c)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("create %v: status = %d, want 400", c, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAdminDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	doc := env.addDoc("a.pdf", "a", false)
	env.grant(bob.ID, doc.ID)

	cookie := env.login("root", "password1")
	resp := env.do(http.MethodDelete, "/admin/users/"+bob.ID, cookie, nil)
	wantStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	// Grants disappear with the account.
	docs, err := env.cfg.Grants.ListFor(t.Context(), bob.ID)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("deleted user still has %d grants", len(docs))
	}

	resp = env.do(http.MethodDelete, "/admin/users/"+bob.ID, cookie, nil)
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	root := env.addUser("root", "password1", true)
	env.addUser("root2", "password1", true)
	cookie := env.login("root", "password1")

	resp := env.do(http.MethodDelete, "/admin/users/"+root.ID, cookie, nil)
	wantStatus(t, resp, http.StatusConflict)
	resp.Body.Close()
}

func TestAdminDeleteOtherAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	other := env.addUser("root2", "password1", true)
	cookie := env.login("root", "password1")

	// Removing one of two admins is fine; the last-admin floor is enforced
	// at the store and covered there.
	resp := env.do(http.MethodDelete, "/admin/users/"+other.ID, cookie, nil)
	wantStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
}

func TestAdminSetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	cookie := env.login("root", "password1")

	resp := env.doJSON(http.MethodPost, "/admin/users/"+bob.ID+"/password", cookie, map[string]string{
		"password": "rotated99",
	})
	wantStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	env.login("bob", "rotated99")

	resp = env.doJSON(http.MethodPost, "/admin/users/missing/password", cookie, map[string]string{
		"password": "rotated99",
	})
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAdminGrantAssignAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	doc := env.addDoc("a.pdf", "a", false)
	cookie := env.login("root", "password1")

	assign := map[string]string{"user_id": bob.ID, "doc_id": doc.ID}

	// Assigning twice is idempotent.
	for i := 0; i < 2; i++ {
		resp := env.doJSON(http.MethodPost, "/admin/grants", cookie, assign)
		wantStatus(t, resp, http.StatusNoContent)
		resp.Body.Close()
	}

	docs, err := env.cfg.Grants.ListFor(t.Context(), bob.ID)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("grants after double assign = %d, want 1", len(docs))
	}

	resp := env.doJSON(http.MethodDelete, "/admin/grants", cookie, assign)
	wantStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	docs, _ = env.cfg.Grants.ListFor(t.Context(), bob.ID)
	if len(docs) != 0 {
		t.Errorf("grants after revoke = %d, want 0", len(docs))
	}
}

func TestAdminGrantDanglingIDs(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	doc := env.addDoc("a.pdf", "a", false)
	cookie := env.login("root", "password1")

	resp := env.doJSON(http.MethodPost, "/admin/grants", cookie, map[string]string{
		"user_id": "missing", "doc_id": doc.ID,
	})
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = env.doJSON(http.MethodPost, "/admin/grants", cookie, map[string]string{
		"user_id": bob.ID, "doc_id": "missing",
	})
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestAdminListGrants(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	doc := env.addDoc("a.pdf", "a", false)
	env.grant(bob.ID, doc.ID)
	cookie := env.login("root", "password1")

	resp := env.do(http.MethodGet, "/admin/grants", cookie, nil)
	wantStatus(t, resp, http.StatusOK)
	var got struct {
		Grants []struct {
			UserID string `json:"user_id"`
			DocID  string `json:"doc_id"`
		} `json:"grants"`
	}
	decodeBody(t, resp, &got)
	if len(got.Grants) != 1 || got.Grants[0].UserID != bob.ID || got.Grants[0].DocID != doc.ID {
		t.Errorf("grants = %+v", got.Grants)
	}
}

func TestAdminDeleteDocument(t *testing.T) {
	env := newTestEnv(t)
	env.addUser("root", "password1", true)
	bob := env.addUser("bob", "password1", false)
	doc := env.addDoc("a.pdf", "a", false)
	env.grant(bob.ID, doc.ID)
	cookie := env.login("root", "password1")

	resp := env.do(http.MethodDelete, "/admin/documents/"+doc.ID, cookie, nil)
	wantStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	if env.blobs.Len() != 0 {
		t.Errorf("blob count after delete = %d, want 0", env.blobs.Len())
	}
	docs, _ := env.cfg.Grants.ListFor(t.Context(), bob.ID)
	if len(docs) != 0 {
		t.Errorf("grants survive document delete: %v", docs)
	}

	bobCookie := env.login("bob", "password1")
	dl := env.do(http.MethodGet, "/download?id="+doc.ID, bobCookie, nil)
	wantStatus(t, dl, http.StatusNotFound)
	dl.Body.Close()

	resp = env.do(http.MethodDelete, "/admin/documents/"+doc.ID, cookie, nil)
	wantStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
