package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the Postgres error code for a broken unique constraint.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PostgresIdentities implements CredentialStore on a shared *sql.DB.
type PostgresIdentities struct {
	db *sql.DB
}

func NewPostgresIdentities(db *sql.DB) *PostgresIdentities {
	return &PostgresIdentities{db: db}
}

func (s *PostgresIdentities) Create(ctx context.Context, username, password string, isAdmin bool) (Identity, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return Identity{}, fmt.Errorf("hash password: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO identities (id, username, password_hash, is_admin)
		 VALUES ($1, $2, $3, $4)`,
		id, username, hash, isAdmin,
	)
	if err != nil {
		// The uniqueness constraint decides the race: concurrent creates
		// for the same username leave exactly one row.
		if isUniqueViolation(err) {
			return Identity{}, ErrDuplicateIdentity
		}
		return Identity{}, fmt.Errorf("insert identity: %w", err)
	}

	return Identity{ID: id, Username: username, IsAdmin: isAdmin}, nil
}

func (s *PostgresIdentities) Verify(ctx context.Context, username, password string) (Identity, error) {
	var (
		ident Identity
		hash  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, is_admin, must_change_password
		 FROM identities WHERE username = $1`,
		username,
	).Scan(&ident.ID, &ident.Username, &hash, &ident.IsAdmin, &ident.MustChangePassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("select identity: %w", err)
	}

	if !CheckPassword(password, hash) {
		return Identity{}, ErrInvalidCredentials
	}
	return ident, nil
}

func (s *PostgresIdentities) ByID(ctx context.Context, id string) (Identity, error) {
	var ident Identity
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, is_admin, must_change_password
		 FROM identities WHERE id = $1`,
		id,
	).Scan(&ident.ID, &ident.Username, &ident.IsAdmin, &ident.MustChangePassword)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrNotFound
		}
		return Identity{}, fmt.Errorf("select identity: %w", err)
	}
	return ident, nil
}

func (s *PostgresIdentities) List(ctx context.Context) ([]Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, is_admin, must_change_password
		 FROM identities ORDER BY username ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []Identity
	for rows.Next() {
		var ident Identity
		if err := rows.Scan(&ident.ID, &ident.Username, &ident.IsAdmin, &ident.MustChangePassword); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, ident)
	}
	return out, rows.Err()
}

func (s *PostgresIdentities) SetPassword(ctx context.Context, id, password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities
		 SET password_hash = $2, must_change_password = FALSE
		 WHERE id = $1`,
		id, hash,
	)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresIdentities) MarkMustChange(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE identities SET must_change_password = TRUE WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("mark must change: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresIdentities) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var isAdmin bool
	err = tx.QueryRowContext(ctx,
		`SELECT is_admin FROM identities WHERE id = $1`, id,
	).Scan(&isAdmin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("select identity: %w", err)
	}

	if isAdmin {
		// Lock every admin row, not just the target: concurrent deletes of
		// the two remaining admins must serialize, so the second one counts
		// the survivor and is refused.
		var admins int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM (
			   SELECT id FROM identities WHERE is_admin FOR UPDATE
			 ) AS locked`,
		).Scan(&admins); err != nil {
			return fmt.Errorf("count admins: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM grants WHERE identity_id = $1`, id,
	); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM identities WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *PostgresIdentities) AdminCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM identities WHERE is_admin`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

// PostgresCatalog implements Catalog.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (s *PostgresCatalog) Register(ctx context.Context, filename, objectKey string, public bool) (Document, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, filename, object_key, is_public)
		 VALUES ($1, $2, $3, $4)`,
		id, filename, objectKey, public,
	)
	if err != nil {
		return Document{}, fmt.Errorf("insert document: %w", err)
	}
	return Document{ID: id, Filename: filename, ObjectKey: objectKey, Public: public}, nil
}

func (s *PostgresCatalog) ByID(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, object_key, is_public FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.Filename, &doc.ObjectKey, &doc.Public)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

func (s *PostgresCatalog) ListAll(ctx context.Context) ([]Document, error) {
	return queryDocs(ctx, s.db,
		`SELECT id, filename, object_key, is_public
		 FROM documents ORDER BY filename ASC`)
}

func (s *PostgresCatalog) ListPublic(ctx context.Context) ([]Document, error) {
	return queryDocs(ctx, s.db,
		`SELECT id, filename, object_key, is_public
		 FROM documents WHERE is_public ORDER BY filename ASC`)
}

func (s *PostgresCatalog) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM grants WHERE document_id = $1`, id,
	); err != nil {
		return fmt.Errorf("delete grants: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// PostgresGrants implements GrantRegistry.
type PostgresGrants struct {
	db *sql.DB
}

func NewPostgresGrants(db *sql.DB) *PostgresGrants {
	return &PostgresGrants{db: db}
}

func (s *PostgresGrants) Grant(ctx context.Context, identityID, documentID string) error {
	// Idempotent by construction: a duplicate edge is a no-op.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO grants (identity_id, document_id)
		 VALUES ($1, $2)
		 ON CONFLICT (identity_id, document_id) DO NOTHING`,
		identityID, documentID,
	)
	if err != nil {
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

func (s *PostgresGrants) Revoke(ctx context.Context, identityID, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM grants WHERE identity_id = $1 AND document_id = $2`,
		identityID, documentID,
	)
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

func (s *PostgresGrants) IsGranted(ctx context.Context, identityID, documentID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM grants WHERE identity_id = $1 AND document_id = $2
		 )`,
		identityID, documentID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("select grant: %w", err)
	}
	return exists, nil
}

func (s *PostgresGrants) ListFor(ctx context.Context, identityID string) ([]Document, error) {
	return queryDocs(ctx, s.db,
		`SELECT d.id, d.filename, d.object_key, d.is_public
		 FROM documents d
		 JOIN grants g ON g.document_id = d.id
		 WHERE g.identity_id = $1
		 ORDER BY d.filename ASC`,
		identityID)
}

func (s *PostgresGrants) ListEdges(ctx context.Context) ([]Grant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT identity_id, document_id FROM grants`,
	)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.IdentityID, &g.DocumentID); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func queryDocs(ctx context.Context, db *sql.DB, query string, args ...any) ([]Document, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.ObjectKey, &doc.Public); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// Interface conformance.
var (
	_ CredentialStore = (*PostgresIdentities)(nil)
	_ Catalog         = (*PostgresCatalog)(nil)
	_ GrantRegistry   = (*PostgresGrants)(nil)
)
