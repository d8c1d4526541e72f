package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// Ban is an account or IP ban. A nil ExpiresAt is permanent.
type Ban struct {
	Reason    string
	BannedBy  string
	BannedAt  time.Time
	ExpiresAt *time.Time
}

// Active reports whether the ban still applies at now.
func (b *Ban) Active(now time.Time) bool {
	return b != nil && (b.ExpiresAt == nil || b.ExpiresAt.After(now))
}

type BanRepo struct {
	db  *DB
	now func() time.Time
}

func NewBanRepo(db *DB) *BanRepo {
	return &BanRepo{db: db, now: time.Now}
}

// AccountBan returns the account's active ban, or nil.
func (r *BanRepo) AccountBan(ctx context.Context, accountID uint32) (*Ban, error) {
	return r.loadBan(ctx,
		`SELECT reason, banned_by, banned_at, expires_at FROM account_bans WHERE account_id = $1`,
		accountID)
}

// IPBan returns the address's active ban, or nil.
func (r *BanRepo) IPBan(ctx context.Context, ip string) (*Ban, error) {
	return r.loadBan(ctx,
		`SELECT reason, banned_by, banned_at, expires_at FROM ip_bans WHERE ip = $1::inet`,
		ip)
}

func (r *BanRepo) loadBan(ctx context.Context, query string, arg any) (*Ban, error) {
	b := &Ban{}
	err := r.db.Pool.QueryRow(ctx, query, arg).Scan(&b.Reason, &b.BannedBy, &b.BannedAt, &b.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !b.Active(r.now()) {
		return nil, nil
	}
	return b, nil
}

// BanAccount adds or replaces an account ban. A zero duration is permanent.
func (r *BanRepo) BanAccount(ctx context.Context, accountID uint32, reason, by string, d time.Duration) error {
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO account_bans (account_id, reason, banned_by, banned_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (account_id) DO UPDATE
		 SET reason = EXCLUDED.reason, banned_by = EXCLUDED.banned_by,
		     banned_at = EXCLUDED.banned_at, expires_at = EXCLUDED.expires_at`,
		accountID, reason, by, r.now(), expiry(r.now(), d))
	return err
}

// IsNamelocked reports whether the character must pick a new name.
func (r *BanRepo) IsNamelocked(ctx context.Context, playerID uint32) (bool, error) {
	var locked bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM player_namelocks WHERE player_id = $1)`, playerID,
	).Scan(&locked)
	return locked, err
}

func expiry(now time.Time, d time.Duration) *time.Time {
	if d <= 0 {
		return nil
	}
	t := now.Add(d)
	return &t
}
