// Package credstore persists per-site credentials at rest, encrypted
// via internal/resolver.SecretResolver so the Value Resolver Chain (C6)
// can read the same rows back through its secret stage. Backed by
// modernc.org/sqlite for the same CGO-free reason as internal/replay and
// internal/navagent's StatsStore.
package credstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/haasonsaas/surfari-go/internal/resolver"
	"github.com/haasonsaas/surfari-go/pkg/models"
)

// Store wraps the site_credentials table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the credential database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("credstore: open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS site_credentials (
			site_id      INTEGER PRIMARY KEY,
			site_name    TEXT NOT NULL,
			url          TEXT NOT NULL,
			username_enc BLOB NOT NULL,
			password_enc BLOB NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Put encrypts username/password with secrets and upserts one site's
// credential row. Each field gets its own random nonce, since reusing a
// nonce across the two fields (or across writes) would break AES-GCM's
// confidentiality guarantee.
func (s *Store) Put(ctx context.Context, secrets *resolver.SecretResolver, siteID int64, siteName, url, username, password string) error {
	usernameEnc, err := sealField(secrets, username)
	if err != nil {
		return fmt.Errorf("credstore: encrypt username: %w", err)
	}
	passwordEnc, err := sealField(secrets, password)
	if err != nil {
		return fmt.Errorf("credstore: encrypt password: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO site_credentials (site_id, site_name, url, username_enc, password_enc)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			site_name = excluded.site_name,
			url = excluded.url,
			username_enc = excluded.username_enc,
			password_enc = excluded.password_enc
	`, siteID, siteName, url, usernameEnc, passwordEnc)
	if err != nil {
		return fmt.Errorf("credstore: upsert: %w", err)
	}
	return nil
}

func sealField(secrets *resolver.SecretResolver, plaintext string) ([]byte, error) {
	nonce := make([]byte, 12) // AES-GCM standard nonce size
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secrets.Encrypt(plaintext, nonce)
}

// Get loads one site's stored credential by site ID. ok is false if no
// row exists, not an error, matching the resolver chain's own
// found-or-not convention for a missing credential.
func (s *Store) Get(ctx context.Context, siteID int64) (cred models.SiteCredential, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT site_id, site_name, url, username_enc, password_enc
		FROM site_credentials WHERE site_id = ?
	`, siteID)

	err = row.Scan(&cred.SiteID, &cred.SiteName, &cred.URL, &cred.UsernameEnc, &cred.PasswordEnc)
	if err == sql.ErrNoRows {
		return models.SiteCredential{}, false, nil
	}
	if err != nil {
		return models.SiteCredential{}, false, fmt.Errorf("credstore: get: %w", err)
	}
	return cred, true, nil
}

// Delete removes a site's stored credential, if any.
func (s *Store) Delete(ctx context.Context, siteID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM site_credentials WHERE site_id = ?`, siteID)
	if err != nil {
		return fmt.Errorf("credstore: delete: %w", err)
	}
	return nil
}
