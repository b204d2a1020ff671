package shops

import (
	"context"
	"fmt"
)

// InstallURLFunc builds the reinstall URL surfaced to merchants when their
// credential record is missing.
type InstallURLFunc func(shop string) string

// Store persists the per-shop access credential.
type Store interface {
	// Get returns the record for a shop, or *NotInstalledError when the
	// shop has no stored credential.
	Get(ctx context.Context, shop string) (Record, error)
	// Upsert is idempotent, keyed on shop domain, last-write-wins.
	Upsert(ctx context.Context, shop, accessToken string, scopes []string) error
	// Delete is idempotent; deleting an unknown shop is not an error.
	Delete(ctx context.Context, shop string) error
}

// NotInstalledError signals that a shop has no stored credential. Callers
// surface InstallURL to the merchant instead of a bare 401 so the app can
// be re-authorized.
type NotInstalledError struct {
	Shop       string
	InstallURL string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("shop %s not installed", e.Shop)
}
