package registry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg := &SQLRegistry{driver: "postgres"}
	lite := &SQLRegistry{driver: "sqlite3"}

	q := `SELECT id FROM artifacts WHERE group_id = ? AND artifact_id = ? AND display`
	assert.Equal(t, `SELECT id FROM artifacts WHERE group_id = $1 AND artifact_id = $2 AND display`, pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, `no placeholders`, pg.rebind(`no placeholders`))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.True(t, isUniqueViolation(errUniqueLike("UNIQUE constraint failed: versions.artifact_id")))
	assert.True(t, isUniqueViolation(errUniqueLike(`pq: duplicate key value violates unique constraint`)))
	assert.False(t, isUniqueViolation(nil))
}

type errUniqueLike string

func (e errUniqueLike) Error() string { return string(e) }

// The sqlmock tests cover driver-level failure plumbing that the SQLite
// suite can't provoke.
func TestSQLRegistryQueryFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := &SQLRegistry{db: db, driver: "postgres"}
	ctx := context.Background()

	t.Run("get artifact propagates scan failure", func(t *testing.T) {
		mock.ExpectQuery(`SELECT .+ FROM artifacts WHERE id = \$1`).
			WithArgs("id-1").
			WillReturnError(assert.AnError)

		_, err := r.GetArtifact(ctx, "id-1")
		assert.ErrorIs(t, err, assert.AnError)
	})

	t.Run("update rolls back when artifact flush fails", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{
			"id", "name", "contact", "description", "group_id", "artifact_id",
			"term", "year", "team", "creator", "current_version", "size_mb",
			"image_ref", "display", "created_at", "last_updated_at",
		}).AddRow("id-1", "n", "c@d", "d", "g", "a", "B", "2018", "C", "alice",
			"1.0.0", 0.0, nil, true, time.Now(), time.Now())

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM artifacts WHERE id = \$1 FOR UPDATE`).
			WithArgs("id-1").
			WillReturnRows(rows)
		mock.ExpectQuery(`SELECT number, info, recorded_at FROM versions`).
			WithArgs("id-1").
			WillReturnRows(sqlmock.NewRows([]string{"number", "info", "recorded_at"}))
		mock.ExpectExec(`UPDATE artifacts SET`).
			WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := r.Update(ctx, Actor{Username: "alice"}, "id-1", func(m Mutator) error {
			m.SetName("renamed")
			return nil
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create user maps unique violation", func(t *testing.T) {
		mock.ExpectExec(`INSERT INTO users`).
			WillReturnError(errUniqueLike(`pq: duplicate key value violates unique constraint "users_pkey"`))

		err := r.CreateUser(ctx, &User{Username: "alice", State: UserActive,
			RegisteredAt: time.Now(), LastLoginAt: time.Now()})
		assert.ErrorIs(t, err, ErrUserExists)
	})
}
