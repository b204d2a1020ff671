// internal/shopify/domain.go
package shopify

import (
	"encoding/base64"
	"net/url"
	"regexp"
	"strings"
)

// DomainSuffix is the fixed suffix every tenant shop domain carries.
const DomainSuffix = ".myshopify.com"

var (
	shopHostRe  = regexp.MustCompile(`([a-zA-Z0-9-]+\.myshopify\.com)`)
	storeSlugRe = regexp.MustCompile(`admin\.shopify\.com/store/([^/?#]+)`)
)

// IsValidShopDomain reports whether s is a syntactically valid shop domain.
// Anything failing this check must be rejected before it is used in URL
// construction; a '/' inside the value would allow path injection.
func IsValidShopDomain(s string) bool {
	return s != "" && strings.HasSuffix(s, DomainSuffix) && !strings.Contains(s, "/")
}

// ShopFromHost decodes the base64 `host` query parameter the platform
// attaches to embedded-app URLs and extracts the shop domain from it.
// Both the legacy `<shop>.myshopify.com/...` and the centralized
// `admin.shopify.com/store/<slug>` forms are accepted. Returns "" when the
// parameter does not decode to either shape.
func ShopFromHost(hostParam string) string {
	if hostParam == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(pad(hostParam))
	if err != nil {
		return ""
	}
	s := string(decoded)
	if strings.Contains(s, DomainSuffix) {
		if m := shopHostRe.FindStringSubmatch(s); m != nil {
			return m[1]
		}
		return ""
	}
	if m := storeSlugRe.FindStringSubmatch(s); m != nil {
		return m[1] + DomainSuffix
	}
	return ""
}

func pad(s string) string {
	if n := len(s) % 4; n != 0 {
		return s + strings.Repeat("=", 4-n)
	}
	return s
}

// EncodedHost builds the base64 host parameter for a shop, preferring the
// centralized admin form the platform uses today.
func EncodedHost(shop string) string {
	slug := strings.TrimSuffix(shop, DomainSuffix)
	raw := shop + "/admin"
	if slug != "" && slug != shop {
		raw = "admin.shopify.com/store/" + slug
	}
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// AuthorizeURL is the platform's OAuth consent screen for a shop.
func AuthorizeURL(shop, clientID, scopes, redirectURI, state string) string {
	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", scopes)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return "https://" + shop + "/admin/oauth/authorize?" + q.Encode()
}

// AdminAppURL deep-links into the embedded app inside the platform admin.
// Empty when the shop or app handle is not usable.
func AdminAppURL(shop, appHandle string) string {
	slug := strings.TrimSuffix(shop, DomainSuffix)
	if slug == "" || slug == shop || appHandle == "" {
		return ""
	}
	return "https://admin.shopify.com/store/" + slug + "/apps/" + appHandle
}

// IsAllowedImageURL restricts image fetch proxying to the platform's CDN
// and shop hosts over https, closing an open-proxy / SSRF hole.
func IsAllowedImageURL(src string) bool {
	if src == "" {
		return false
	}
	u, err := url.Parse(src)
	if err != nil || !strings.EqualFold(u.Scheme, "https") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	return host == "cdn.shopify.com" ||
		strings.HasSuffix(host, ".cdn.shopify.com") ||
		strings.HasSuffix(host, DomainSuffix)
}
