package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "postgres")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var profileRowColumns = []string{"id", "email", "password_hash", "full_name", "phone", "avatar_url", "token_version", "created_at", "updated_at"}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(profileRowColumns).
		AddRow("u1", "user@example.com", "hash", "User", nil, nil, 3, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + profileColumns + " FROM profiles WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, 3, user.TokenVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM profiles WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRoleIsTransactional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO user_roles").WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), models.RoleStudent).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user := &models.User{Email: "new@example.com", PasswordHash: "hash", FullName: "New"}
	require.NoError(t, repo.CreateWithRole(context.Background(), user, models.RoleStudent))
	assert.NotEmpty(t, user.ID)
	assert.Equal(t, 1, user.TokenVersion)
	assert.True(t, user.Roles.Has(models.RoleStudent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateWithRoleRollsBackOnDuplicateEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO profiles").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.CreateWithRole(context.Background(), &models.User{Email: "dup@example.com"}, models.RoleStudent)
	require.Error(t, err)
	var pqErr *pq.Error
	assert.ErrorAs(t, err, &pqErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePasswordBumpsTokenVersion(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE profiles SET password_hash = $2, token_version = token_version + 1")).
		WithArgs("u1", "newhash", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"token_version"}).AddRow(2))

	version, err := repo.UpdatePassword(context.Background(), "u1", "newhash", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows(profileRowColumns).
		AddRow("1", "a@example.com", "hash", "A", nil, nil, 1, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles p WHERE 1=1 ORDER BY p.created_at DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM profiles p WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRolesForGroupsByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, role FROM user_roles WHERE user_id IN ($1, $2)")).
		WithArgs("u1", "u2").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role"}).
			AddRow("u1", "admin").
			AddRow("u1", "faculty").
			AddRow("u2", "student"))

	roles, err := repo.RolesFor(context.Background(), []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, []models.Role{models.RoleAdmin, models.RoleFaculty}, roles["u1"].Slice())
	assert.True(t, roles["u2"].Has(models.RoleStudent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveRoleReportsAbsence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("DELETE FROM user_roles").WithArgs("u1", models.RoleDirector).WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.RemoveRole(context.Background(), "u1", models.RoleDirector)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
