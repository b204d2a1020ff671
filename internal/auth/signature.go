// internal/auth/signature.go
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// buildQueryMessage canonicalizes params for HMAC verification: every key
// except the signature itself, sorted lexicographically, joined as
// key=value pairs with '&'. Values are used raw (not re-encoded), matching
// the platform's signing scheme.
func buildQueryMessage(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params.Get(k))
	}
	return strings.Join(pairs, "&")
}

// VerifyQueryHMAC checks the hex-encoded hmac parameter on an OAuth
// callback query against the app secret. Fails closed when the hmac
// parameter is absent. Constant-time comparison.
func VerifyQueryHMAC(params url.Values, secret string) bool {
	if !params.Has("hmac") {
		return false
	}
	provided := params.Get("hmac")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(buildQueryMessage(params)))
	digest := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(digest), []byte(provided))
}

// SignQueryHMAC computes the hex digest the platform would attach to params.
func SignQueryHMAC(params url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(buildQueryMessage(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// WebhookDigest computes the base64 digest the platform attaches to a
// webhook delivery.
func WebhookDigest(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookHMAC checks the base64 digest header on a webhook delivery
// against the raw, unparsed request body. The body must be the exact bytes
// received on the wire; re-serializing a parsed body will not verify.
func VerifyWebhookHMAC(rawBody []byte, headerDigest, secret string) bool {
	if headerDigest == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	computed := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(computed), []byte(headerDigest))
}
