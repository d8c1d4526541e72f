package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/otgo/server/internal/world"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials covers both an unknown account and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Account is an authenticated account.
type Account struct {
	ID           uint32
	Name         string
	PasswordHash string
	Type         world.AccountType
	PremiumUntil *time.Time
	CreatedAt    time.Time
}

// PremiumDays rounds the remaining premium time up to whole days.
func (a *Account) PremiumDays(now time.Time) uint16 {
	if a.PremiumUntil == nil || !a.PremiumUntil.After(now) {
		return 0
	}
	days := (a.PremiumUntil.Sub(now) + 24*time.Hour - 1) / (24 * time.Hour)
	return uint16(min(days, 0xFFFE))
}

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

// Load returns nil when the account does not exist.
func (r *AccountRepo) Load(ctx context.Context, name string) (*Account, error) {
	a := &Account{}
	var typ int16
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, password_hash, account_type, premium_until, created_at
		 FROM accounts WHERE lower(name) = lower($1)`, name,
	).Scan(&a.ID, &a.Name, &a.PasswordHash, &typ, &a.PremiumUntil, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Type = world.AccountType(typ)
	return a, nil
}

func (r *AccountRepo) Create(ctx context.Context, name, rawPassword string, typ world.AccountType) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	a := &Account{Name: name, PasswordHash: string(hash), Type: typ, CreatedAt: time.Now()}
	err = r.db.Pool.QueryRow(ctx,
		`INSERT INTO accounts (name, password_hash, account_type, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		a.Name, a.PasswordHash, int16(a.Type), a.CreatedAt,
	).Scan(&a.ID)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *AccountRepo) ValidatePassword(hash string, rawPassword string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawPassword)) == nil
}

// Authenticate loads the account and checks the password.
func (r *AccountRepo) Authenticate(ctx context.Context, name, password string) (*Account, error) {
	a, err := r.Load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if a == nil || !r.ValidatePassword(a.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return a, nil
}

// CharacterNames lists the account's characters in name order.
func (r *AccountRepo) CharacterNames(ctx context.Context, accountID uint32) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name FROM players WHERE account_id = $1 ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect characters: %w", err)
	}
	return names, nil
}
