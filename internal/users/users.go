package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

type Store interface {
	InsertUser(ctx context.Context, u User) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// Conf is the Postgres implementation of Store.
type Conf struct {
	db *sql.DB
}

func NewConf(db *sql.DB) (*Conf, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	return &Conf{db: db}, nil
}

// NewUserRecord hashes the password and builds the record to insert.
func NewUserRecord(nu NewUser, roles []string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}
	return User{
		ID:           uuid.NewString(),
		Name:         nu.Name,
		Email:        strings.ToLower(strings.TrimSpace(nu.Email)),
		PasswordHash: string(hash),
		Roles:        roles,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Authenticate returns the user only when the password matches.
func Authenticate(ctx context.Context, s Store, l Login) (User, error) {
	u, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(l.Email)))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidLogin
		}
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(l.Password)); err != nil {
		return User{}, ErrInvalidLogin
	}
	return u, nil
}

func (c *Conf) InsertUser(ctx context.Context, u User) (User, error) {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, strings.Join(u.Roles, ","), u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func (c *Conf) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var (
		u     User
		roles string
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, roles, created_at
		FROM users
		WHERE email = $1`, email).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &roles, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if roles != "" {
		u.Roles = strings.Split(roles, ",")
	}
	return u, nil
}

// EnsureUser creates the account unless the email is already registered. It reports whether a
// new account was created. Used to seed the first admin.
func EnsureUser(ctx context.Context, s Store, nu NewUser, roles []string) (bool, error) {
	_, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(nu.Email)))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return false, err
	}
	u, err := NewUserRecord(nu, roles)
	if err != nil {
		return false, err
	}
	if _, err := s.InsertUser(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
