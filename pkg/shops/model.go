package shops

import "time"

// Record is the long-lived credential entry for one installed shop. It is
// owned exclusively by the Store; nothing else mutates it.
type Record struct {
	ShopDomain  string
	AccessToken string
	Scopes      []string
	InstalledAt time.Time
	UpdatedAt   time.Time
}
