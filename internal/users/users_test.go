package users

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byEmail map[string]User
}

func (f *fakeStore) InsertUser(_ context.Context, u User) (User, error) {
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func TestAuthenticate(t *testing.T) {
	u, err := NewUserRecord(NewUser{Name: "Asha", Email: " Asha@Example.com ", Password: "s3cretpass"}, []string{"USER"})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", u.Email)
	assert.NotEqual(t, "s3cretpass", u.PasswordHash)

	s := &fakeStore{byEmail: map[string]User{}}
	_, err = s.InsertUser(context.Background(), u)
	require.NoError(t, err)

	got, err := Authenticate(context.Background(), s, Login{Email: "ASHA@example.com", Password: "s3cretpass"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = Authenticate(context.Background(), s, Login{Email: "asha@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidLogin)

	_, err = Authenticate(context.Background(), s, Login{Email: "nobody@example.com", Password: "s3cretpass"})
	assert.ErrorIs(t, err, ErrInvalidLogin)
}

func TestConf_InsertUser_DuplicateEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	c, err := NewConf(db)
	require.NoError(t, err)

	u := User{ID: "u-1", Name: "Asha", Email: "asha@example.com", PasswordHash: "h", Roles: []string{"USER"}, CreatedAt: time.Now()}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(u.ID, u.Name, u.Email, u.PasswordHash, "USER", u.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = c.InsertUser(context.Background(), u)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConf_GetUserByEmail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	c, err := NewConf(db)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("admin@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "roles", "created_at"}).
			AddRow("u-1", "Admin", "admin@example.com", "h", "USER,ADMIN", time.Now()))

	u, err := c.GetUserByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"USER", "ADMIN"}, u.Roles)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("x@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = c.GetUserByEmail(context.Background(), "x@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsureUser(t *testing.T) {
	s := &fakeStore{byEmail: map[string]User{}}
	nu := NewUser{Name: "Admin", Email: "Admin@Example.com", Password: "adminpass1"}

	created, err := EnsureUser(context.Background(), s, nu, []string{"ADMIN"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"ADMIN"}, s.byEmail["admin@example.com"].Roles)

	created, err = EnsureUser(context.Background(), s, nu, []string{"ADMIN"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, s.byEmail, 1)
}
