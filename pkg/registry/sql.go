package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver (tests, single-node)
)

// SQLConfig holds connection settings for the SQL-backed registry.
type SQLConfig struct {
	Driver   string // "postgres" or "sqlite3"
	URL      string
	MaxConns int
	MinConns int
	Timeout  time.Duration
}

// SQLRegistry implements Registry on a relational database. A per-row
// update is the serialization boundary: concurrent updates to the same
// artifact queue on the row lock (SELECT ... FOR UPDATE on PostgreSQL;
// SQLite serializes writers itself).
type SQLRegistry struct {
	db     *sql.DB
	driver string
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	admin         BOOLEAN NOT NULL DEFAULT FALSE,
	locked        BOOLEAN NOT NULL DEFAULT FALSE,
	state         TEXT NOT NULL DEFAULT 'active',
	registered_at TIMESTAMP NOT NULL,
	last_login_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS artifacts (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	contact         TEXT NOT NULL,
	description     TEXT NOT NULL,
	group_id        TEXT NOT NULL,
	artifact_id     TEXT NOT NULL,
	term            TEXT NOT NULL,
	year            TEXT NOT NULL,
	team            TEXT NOT NULL,
	creator         TEXT NOT NULL,
	current_version TEXT NOT NULL,
	size_mb         REAL NOT NULL DEFAULT 0,
	image_ref       TEXT,
	display         BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMP NOT NULL,
	last_updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_coordinates
	ON artifacts (group_id, artifact_id) WHERE display;

CREATE TABLE IF NOT EXISTS versions (
	artifact_id TEXT NOT NULL REFERENCES artifacts (id),
	number      TEXT NOT NULL,
	info        TEXT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	PRIMARY KEY (artifact_id, number)
);
`

// NewSQLRegistry opens the database, tunes the pool, verifies connectivity
// and ensures the schema exists.
func NewSQLRegistry(cfg SQLConfig) (*SQLRegistry, error) {
	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	r := &SQLRegistry{db: db, driver: cfg.Driver}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLRegistry) ensureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the $N style lib/pq expects.
// Queries in this file are written with ? so the SQLite driver can run the
// same statements.
func (r *SQLRegistry) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// CreateUser implements Registry.CreateUser.
func (r *SQLRegistry) CreateUser(ctx context.Context, user *User) error {
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO users (username, password_hash, admin, locked, state, registered_at, last_login_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`),
		user.Username, string(user.PasswordHash), user.Admin, user.Locked,
		string(user.State), user.RegisteredAt, user.LastLoginAt)
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser implements Registry.GetUser.
func (r *SQLRegistry) GetUser(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, r.rebind(
		`SELECT username, password_hash, admin, locked, state, registered_at, last_login_at
		 FROM users WHERE username = ? AND state = 'active'`), username))
}

func scanUser(row *sql.Row) (*User, error) {
	var user User
	var hash, state string
	err := row.Scan(&user.Username, &hash, &user.Admin, &user.Locked, &state,
		&user.RegisteredAt, &user.LastLoginAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.PasswordHash = []byte(hash)
	user.State = UserState(state)
	return &user, nil
}

// ListUsers implements Registry.ListUsers.
func (r *SQLRegistry) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username, password_hash, admin, locked, state, registered_at, last_login_at
		 FROM users WHERE state = 'active' ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var user User
		var hash, state string
		if err := rows.Scan(&user.Username, &hash, &user.Admin, &user.Locked, &state,
			&user.RegisteredAt, &user.LastLoginAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		user.PasswordHash = []byte(hash)
		user.State = UserState(state)
		users = append(users, &user)
	}
	return users, rows.Err()
}

// SoftDeleteUser implements Registry.SoftDeleteUser.
func (r *SQLRegistry) SoftDeleteUser(ctx context.Context, username string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, r.rebind(
		`UPDATE users SET state = 'deleted' WHERE username = ? AND state = 'active'`), username)
	if err != nil {
		return fmt.Errorf("failed to mark user deleted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	if _, err := tx.ExecContext(ctx, r.rebind(
		`UPDATE artifacts SET display = FALSE WHERE creator = ?`), username); err != nil {
		return fmt.Errorf("failed to undisplay user artifacts: %w", err)
	}
	return tx.Commit()
}

// TouchLogin implements Registry.TouchLogin.
func (r *SQLRegistry) TouchLogin(ctx context.Context, username string, at time.Time) error {
	return r.setUserField(ctx, `last_login_at`, at, username)
}

// SetAdmin implements Registry.SetAdmin.
func (r *SQLRegistry) SetAdmin(ctx context.Context, username string, admin bool) error {
	return r.setUserField(ctx, `admin`, admin, username)
}

// SetLocked implements Registry.SetLocked.
func (r *SQLRegistry) SetLocked(ctx context.Context, username string, locked bool) error {
	return r.setUserField(ctx, `locked`, locked, username)
}

func (r *SQLRegistry) setUserField(ctx context.Context, column string, value interface{}, username string) error {
	res, err := r.db.ExecContext(ctx, r.rebind(
		`UPDATE users SET `+column+` = ? WHERE username = ? AND state = 'active'`), value, username)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateArtifact implements Registry.CreateArtifact. The partial unique
// index on displayed (group_id, artifact_id) backstops the explicit check
// under concurrent creates.
func (r *SQLRegistry) CreateArtifact(ctx context.Context, a *Artifact) error {
	_, err := r.db.ExecContext(ctx, r.rebind(
		`INSERT INTO artifacts (id, name, contact, description, group_id, artifact_id,
			term, year, team, creator, current_version, size_mb, image_ref, display,
			created_at, last_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		a.ID, a.Name, a.Contact, a.Description, a.GroupID, a.ArtifactID,
		a.Term, a.Year, a.Team, a.Creator, a.CurrentVersion, a.SizeMB, a.ImageRef,
		a.Display, a.CreatedAt, a.LastUpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateCoordinates
	}
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

const artifactColumns = `id, name, contact, description, group_id, artifact_id,
	term, year, team, creator, current_version, size_mb, image_ref, display,
	created_at, last_updated_at`

func (r *SQLRegistry) getArtifactTx(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}, id string, forUpdate bool) (*Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE id = ?`
	if forUpdate && r.driver == "postgres" {
		query += ` FOR UPDATE`
	}
	var a Artifact
	err := q.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.Name, &a.Contact, &a.Description, &a.GroupID, &a.ArtifactID,
		&a.Term, &a.Year, &a.Team, &a.Creator, &a.CurrentVersion, &a.SizeMB,
		&a.ImageRef, &a.Display, &a.CreatedAt, &a.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan artifact: %w", err)
	}

	rows, err := q.QueryContext(ctx, r.rebind(
		`SELECT number, info, recorded_at FROM versions WHERE artifact_id = ? ORDER BY recorded_at`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v VersionEntry
		if err := rows.Scan(&v.Number, &v.Info, &v.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		a.Versions = append(a.Versions, v)
	}
	return &a, rows.Err()
}

// GetArtifact implements Registry.GetArtifact.
func (r *SQLRegistry) GetArtifact(ctx context.Context, id string) (*Artifact, error) {
	a, err := r.getArtifactTx(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	if !a.Display {
		return nil, ErrNotFound
	}
	return a, nil
}

// LookupArtifact implements Registry.LookupArtifact.
func (r *SQLRegistry) LookupArtifact(ctx context.Context, groupID, artifactID string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, r.rebind(
		`SELECT id FROM artifacts WHERE group_id = ? AND artifact_id = ? AND display`),
		groupID, artifactID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up artifact: %w", err)
	}
	return id, nil
}

// Update implements Registry.Update. The whole mutation runs in one
// transaction; a failed callback rolls back every field already set.
func (r *SQLRegistry) Update(ctx context.Context, actor Actor, id string, fn func(Mutator) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	artifact, err := r.getArtifactTx(ctx, tx, id, true)
	if errors.Is(err, ErrNotFound) {
		return ErrOwnership
	}
	if err != nil {
		return err
	}
	if err := authorize(actor, artifact); err != nil {
		return err
	}

	m := &mutator{artifact: artifact}
	if err := fn(m); err != nil {
		return err
	}

	a := m.artifact
	if _, err := tx.ExecContext(ctx, r.rebind(
		`UPDATE artifacts SET name = ?, contact = ?, description = ?, term = ?, year = ?,
			team = ?, current_version = ?, size_mb = ?, image_ref = ?, display = ?,
			last_updated_at = ?
		 WHERE id = ?`),
		a.Name, a.Contact, a.Description, a.Term, a.Year, a.Team,
		a.CurrentVersion, a.SizeMB, a.ImageRef, a.Display, a.LastUpdatedAt, id); err != nil {
		return fmt.Errorf("failed to update artifact: %w", err)
	}
	for _, v := range m.appended {
		_, err := tx.ExecContext(ctx, r.rebind(
			`INSERT INTO versions (artifact_id, number, info, recorded_at) VALUES (?, ?, ?, ?)`),
			id, v.Number, v.Info, v.RecordedAt)
		if isUniqueViolation(err) {
			return ErrDuplicateVersion
		}
		if err != nil {
			return fmt.Errorf("failed to insert version: %w", err)
		}
	}
	return tx.Commit()
}

// SoftDeleteArtifact implements Registry.SoftDeleteArtifact.
func (r *SQLRegistry) SoftDeleteArtifact(ctx context.Context, actor Actor, id string) error {
	return r.Update(ctx, actor, id, func(m Mutator) error {
		m.SetDisplay(false)
		m.SetImageRef(nil)
		return nil
	})
}

// ListForExport implements Registry.ListForExport.
func (r *SQLRegistry) ListForExport(ctx context.Context) ([]*Artifact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM artifacts WHERE display ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan artifact id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	artifacts := make([]*Artifact, 0, len(ids))
	for _, id := range ids {
		a, err := r.getArtifactTx(ctx, r.db, id, false)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// Close implements Registry.Close.
func (r *SQLRegistry) Close() error { return r.db.Close() }
