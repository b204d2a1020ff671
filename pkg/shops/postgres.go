// pkg/shops/postgres.go
package shops

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgStore implements Store backed by PostgreSQL.
type pgStore struct {
	dbPool     *pgxpool.Pool
	log        *zap.SugaredLogger
	installURL InstallURLFunc
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(dbPool *pgxpool.Pool, log *zap.SugaredLogger, installURL InstallURLFunc) Store {
	return &pgStore{dbPool: dbPool, log: log, installURL: installURL}
}

// EnsureSchema creates the shops table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS shopify_shops (
  shop_domain text PRIMARY KEY,
  access_token text NOT NULL,
  scopes text[] NOT NULL DEFAULT '{}',
  installed_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (s *pgStore) Get(ctx context.Context, shop string) (Record, error) {
	var rec Record
	err := s.dbPool.QueryRow(ctx, `
		SELECT shop_domain, access_token, scopes, installed_at, updated_at
		FROM shopify_shops WHERE shop_domain=$1
	`, shop).Scan(&rec.ShopDomain, &rec.AccessToken, &rec.Scopes, &rec.InstalledAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, &NotInstalledError{Shop: shop, InstallURL: s.installURL(shop)}
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *pgStore) Upsert(ctx context.Context, shop, accessToken string, scopes []string) error {
	_, err := s.dbPool.Exec(ctx, `
		INSERT INTO shopify_shops (shop_domain, access_token, scopes, installed_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (shop_domain) DO UPDATE
		SET access_token=EXCLUDED.access_token, scopes=EXCLUDED.scopes, updated_at=NOW()
	`, shop, accessToken, scopes)
	return err
}

func (s *pgStore) Delete(ctx context.Context, shop string) error {
	_, err := s.dbPool.Exec(ctx, `DELETE FROM shopify_shops WHERE shop_domain=$1`, shop)
	return err
}
