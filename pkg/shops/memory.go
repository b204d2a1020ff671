// pkg/shops/memory.go
package shops

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type memStore struct {
	log        *zap.SugaredLogger
	installURL InstallURLFunc
	mu         sync.RWMutex
	byShop     map[string]Record
	now        func() time.Time
}

// NewMemoryStore returns an in-process Store for dev and tests.
func NewMemoryStore(log *zap.SugaredLogger, installURL InstallURLFunc) Store {
	return &memStore{log: log, installURL: installURL, byShop: map[string]Record{}, now: time.Now}
}

func (m *memStore) Get(ctx context.Context, shop string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if rec, ok := m.byShop[shop]; ok {
		return rec, nil
	}
	return Record{}, &NotInstalledError{Shop: shop, InstallURL: m.installURL(shop)}
}

func (m *memStore) Upsert(ctx context.Context, shop, accessToken string, scopes []string) error {
	now := m.now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byShop[shop]
	if !ok {
		rec = Record{ShopDomain: shop, InstalledAt: now}
	}
	rec.AccessToken = accessToken
	rec.Scopes = scopes
	rec.UpdatedAt = now
	m.byShop[shop] = rec
	return nil
}

func (m *memStore) Delete(ctx context.Context, shop string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byShop, shop)
	return nil
}

// SplitScopes normalizes the comma-separated scope string the platform
// returns on token exchange.
func SplitScopes(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
