// internal/auth/issuer.go
package auth

import (
	"regexp"
	"strings"

	"shopgate/internal/shopify"
)

// issuerMatcher attempts to extract a shop domain from one historically
// valid issuer shape. Matchers are tried in a fixed priority order; adding
// a newly accepted shape is a one-line append to issuerMatchers.
type issuerMatcher func(issuer string) (shop string, ok bool)

var storeIssuerRe = regexp.MustCompile(`^https://admin\.shopify\.com/store/([^/?#]+)`)

var issuerMatchers = []issuerMatcher{
	matchAdminPath,  // https://<shop>/admin
	matchStoreSlug,  // https://admin.shopify.com/store/<slug>[/...]
	matchBareDomain, // https://<shop>
}

// matchAdminPath handles the classic per-shop admin issuer. The path must
// be exactly /admin; a deeper path ending in /admin is not an accepted
// shape.
func matchAdminPath(issuer string) (string, bool) {
	host, hasPath := splitIssuerHost(issuer)
	if host == "" || !hasPath {
		return "", false
	}
	rest, _ := strings.CutPrefix(issuer, "https://")
	i := strings.IndexAny(rest, "/?#")
	if i < 0 || strings.Trim(rest[i:], "/") != "admin" {
		return "", false
	}
	return host, true
}

// matchStoreSlug handles the centralized admin issuer; the platform may
// append deeper path segments after the store slug.
func matchStoreSlug(issuer string) (string, bool) {
	m := storeIssuerRe.FindStringSubmatch(issuer)
	if m == nil {
		return "", false
	}
	return m[1] + shopify.DomainSuffix, true
}

// matchBareDomain handles a bare https://<shop> issuer.
func matchBareDomain(issuer string) (string, bool) {
	host, hasPath := splitIssuerHost(issuer)
	if host == "" || hasPath {
		return "", false
	}
	return host, true
}

// splitIssuerHost returns the lowercased shop host of an https issuer URL
// and whether anything follows it. Non-shop hosts return "".
func splitIssuerHost(issuer string) (host string, hasPath bool) {
	rest, found := strings.CutPrefix(issuer, "https://")
	if !found || rest == "" {
		return "", false
	}
	host = rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		host = rest[:i]
		hasPath = strings.Trim(rest[i:], "/") != ""
	}
	host = strings.ToLower(host)
	if !strings.HasSuffix(host, shopify.DomainSuffix) {
		return "", false
	}
	return host, hasPath
}

// ShopFromIssuer runs the matcher chain and returns the extracted shop
// domain, or "" when no accepted shape matches.
func ShopFromIssuer(issuer string) string {
	if issuer == "" {
		return ""
	}
	for _, m := range issuerMatchers {
		if shop, ok := m(issuer); ok {
			return shop
		}
	}
	return ""
}

// IssuerMatchesShop reports whether the issuer is one of the accepted
// shapes for the given shop.
func IssuerMatchesShop(issuer, shop string) bool {
	extracted := ShopFromIssuer(strings.TrimRight(issuer, "/"))
	return extracted != "" && extracted == shop
}
