// Package sqlstore persists address books in SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"
	_ "modernc.org/sqlite"

	"github.com/pior/contactsync/contact"
)

// Store implements contact.Store on a SQLite database.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ contact.Store = (*Store)(nil)

type contactRow struct {
	ID          string    `db:"id"`
	SourcePath  string    `db:"source_path"`
	LastName    string    `db:"last_name"`
	FirstName   string    `db:"first_name"`
	DisplayName string    `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type emailRow struct {
	ID        string `db:"id"`
	ContactID string `db:"contact_id"`
	Address   string `db:"address"`
	Position  int    `db:"position"`
}

type sourceRow struct {
	Path     string `db:"path"`
	Name     string `db:"name"`
	Position int    `db:"position"`
}

// Open opens (or creates) the database at path, enables WAL mode and
// foreign keys, and runs pending migrations. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Pragmas are per connection; a single connection also keeps an
	// in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		if err := s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// EnsureSource registers an address book. Existing books keep their
// position and get their name updated.
func (s *Store) EnsureSource(ctx context.Context, src contact.Source) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sources (path, name, position)
		VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM sources))
		ON CONFLICT(path) DO UPDATE SET name = excluded.name`,
		src.Path, src.Name,
	)
	if err != nil {
		return fmt.Errorf("ensuring source %s: %w", src.Path, err)
	}
	return nil
}

func (s *Store) Sources(ctx context.Context) ([]contact.Source, error) {
	var rows []sourceRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM sources ORDER BY position"); err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	return lo.Map(rows, func(r sourceRow, _ int) contact.Source {
		return contact.Source{Name: r.Name, Path: r.Path}
	}), nil
}

func (s *Store) Walk(ctx context.Context, fn contact.WalkFunc) error {
	sources, err := s.Sources(ctx)
	if err != nil {
		return err
	}

	var rows []contactRow
	err = s.db.SelectContext(ctx, &rows, `
		SELECT c.* FROM contacts c
		JOIN sources s ON s.path = c.source_path
		ORDER BY s.position, c.created_at, c.id`)
	if err != nil {
		return fmt.Errorf("querying contacts: %w", err)
	}

	var emails []emailRow
	if err := s.db.SelectContext(ctx, &emails, "SELECT * FROM emails ORDER BY contact_id, position"); err != nil {
		return fmt.Errorf("querying emails: %w", err)
	}
	byContact := lo.GroupBy(emails, func(e emailRow) string { return e.ContactID })
	byPath := lo.KeyBy(sources, func(src contact.Source) string { return src.Path })

	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(byPath[r.SourcePath], toContact(r, byContact[r.ID])); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Create(ctx context.Context, folder string, c *contact.Contact) (*contact.Contact, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM sources WHERE path = ?", folder); err != nil {
		return nil, fmt.Errorf("checking folder %s: %w", folder, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("create in %q: %w", folder, contact.ErrFolderNotFound)
	}

	stored := c.Clone()
	stored.ID = uuid.New().String()
	for _, e := range stored.Emails {
		e.ID = ""
	}
	now := s.now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO contacts (id, source_path, last_name, first_name, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stored.ID, folder, stored.LastName, stored.FirstName, stored.DisplayName, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating contact: %w", err)
	}

	if err := insertEmails(ctx, tx, stored); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing contact %s: %w", stored.ID, err)
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, id string, c *contact.Contact) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if c.ID != id {
		var taken int
		if err := tx.GetContext(ctx, &taken, "SELECT COUNT(*) FROM contacts WHERE id = ?", c.ID); err != nil {
			return fmt.Errorf("checking id %s: %w", c.ID, err)
		}
		if taken > 0 {
			return fmt.Errorf("update %q to %q: %w", id, c.ID, contact.ErrDuplicateID)
		}
	}

	// ON UPDATE CASCADE carries the emails along when the id changes.
	result, err := tx.ExecContext(ctx, `
		UPDATE contacts
		SET id = ?, last_name = ?, first_name = ?, display_name = ?, updated_at = ?
		WHERE id = ?`,
		c.ID, c.LastName, c.FirstName, c.DisplayName, s.now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating contact %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("update %q: %w", id, contact.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM emails WHERE contact_id = ?", c.ID); err != nil {
		return fmt.Errorf("clearing emails of %s: %w", c.ID, err)
	}
	if err := insertEmails(ctx, tx, c); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing contact %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM contacts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting contact %s: %w", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %q: %w", id, contact.ErrNotFound)
	}
	return nil
}

// Get returns one contact by id.
func (s *Store) Get(ctx context.Context, id string) (*contact.Contact, error) {
	var row contactRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM contacts WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %q: %w", id, contact.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting contact %s: %w", id, err)
	}

	var emails []emailRow
	if err := s.db.SelectContext(ctx, &emails, "SELECT * FROM emails WHERE contact_id = ? ORDER BY position", id); err != nil {
		return nil, fmt.Errorf("querying emails of %s: %w", id, err)
	}
	return toContact(row, emails), nil
}

// insertEmails writes c.Emails in order, assigning IDs to new sub-records.
func insertEmails(ctx context.Context, tx *sqlx.Tx, c *contact.Contact) error {
	if len(c.Emails) == 0 {
		return nil
	}

	stmt, err := tx.PreparexContext(ctx,
		"INSERT INTO emails (id, contact_id, address, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing email insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range c.Emails {
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx, e.ID, c.ID, e.Address, i); err != nil {
			return fmt.Errorf("inserting email %s: %w", e.Address, err)
		}
	}
	return nil
}

func toContact(r contactRow, emails []emailRow) *contact.Contact {
	return &contact.Contact{
		ID:          r.ID,
		LastName:    r.LastName,
		FirstName:   r.FirstName,
		DisplayName: r.DisplayName,
		Emails: lo.Map(emails, func(e emailRow, _ int) *contact.Email {
			return &contact.Email{ID: e.ID, Address: e.Address}
		}),
	}
}
