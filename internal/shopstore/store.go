package shopstore

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Upsert(ctx context.Context, rec Record) (*Record, error) {
	const q = `
INSERT INTO shops (shop, access_mode, access_token, scope, expires_at, refresh_token, refresh_token_expires_at, user_id)
VALUES ($1, $2, $3, $4, NULLIF($5, 'epoch'::timestamptz), $6, NULLIF($7, 'epoch'::timestamptz), NULLIF($8, 0))
ON CONFLICT (shop) DO UPDATE SET
  access_mode = EXCLUDED.access_mode,
  access_token = EXCLUDED.access_token,
  scope = EXCLUDED.scope,
  expires_at = EXCLUDED.expires_at,
  refresh_token = EXCLUDED.refresh_token,
  refresh_token_expires_at = EXCLUDED.refresh_token_expires_at,
  user_id = EXCLUDED.user_id
RETURNING id, shop, access_mode, access_token, COALESCE(scope,''),
  COALESCE(expires_at,'epoch'::timestamptz), COALESCE(refresh_token,''),
  COALESCE(refresh_token_expires_at,'epoch'::timestamptz), COALESCE(user_id,0), installed_at
`
	out := &Record{}
	if err := s.db.QueryRow(ctx, q,
		rec.Shop, rec.AccessMode, rec.AccessToken, rec.Scope, rec.ExpiresAt,
		rec.RefreshToken, rec.RefreshTokenExpires, rec.UserID,
	).Scan(
		&out.ID, &out.Shop, &out.AccessMode, &out.AccessToken, &out.Scope,
		&out.ExpiresAt, &out.RefreshToken, &out.RefreshTokenExpires, &out.UserID, &out.InstalledAt,
	); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) FindByShop(ctx context.Context, shop string) (*Record, error) {
	const q = `
SELECT id, shop, access_mode, access_token, COALESCE(scope,''),
  COALESCE(expires_at,'epoch'::timestamptz), COALESCE(refresh_token,''),
  COALESCE(refresh_token_expires_at,'epoch'::timestamptz), COALESCE(user_id,0), installed_at
FROM shops
WHERE shop = $1
`
	out := &Record{}
	if err := s.db.QueryRow(ctx, q, shop).Scan(
		&out.ID, &out.Shop, &out.AccessMode, &out.AccessToken, &out.Scope,
		&out.ExpiresAt, &out.RefreshToken, &out.RefreshTokenExpires, &out.UserID, &out.InstalledAt,
	); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteByShop(ctx context.Context, shop string) error {
	const q = `DELETE FROM shops WHERE shop = $1`
	_, err := s.db.Exec(ctx, q, shop)
	return err
}
