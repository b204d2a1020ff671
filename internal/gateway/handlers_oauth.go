package gateway

import (
	"net/http"

	"shopgate/internal/auth"
	"shopgate/internal/shopify"
	"shopgate/pkg/shops"
)

const stateCookieName = "shopify_oauth_state"

// install starts the authorization-code flow: issue the anti-CSRF state,
// bind it to the browser via a cross-site-capable cookie, and bounce the
// merchant to the platform's consent screen.
func (a *App) install(w http.ResponseWriter, r *http.Request) {
	if a.cfg.APIKey == "" || a.cfg.APISecret == "" {
		writeDetail(w, http.StatusInternalServerError, "Missing Shopify API config.")
		return
	}
	shop := r.URL.Query().Get("shop")
	if !shopify.IsValidShopDomain(shop) {
		writeDetail(w, http.StatusBadRequest, "Invalid shop domain.")
		return
	}

	state := a.state.Issue(shop)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	http.Redirect(w, r, shopify.AuthorizeURL(shop, a.cfg.APIKey, a.cfg.Scopes, a.cfg.OAuthCallbackURL, state), http.StatusFound)
}

// oauthCallback completes the flow: HMAC over the callback query, state
// verification (cookie match first, signed-state fallback for browsers
// that dropped the cookie on the cross-site redirect), code exchange,
// credential persistence, then back into the embedded admin.
func (a *App) oauthCallback(w http.ResponseWriter, r *http.Request) {
	if a.cfg.APIKey == "" || a.cfg.APISecret == "" {
		writeDetail(w, http.StatusInternalServerError, "Missing Shopify API config.")
		return
	}
	q := r.URL.Query()
	shop, code, state := q.Get("shop"), q.Get("code"), q.Get("state")
	if !shopify.IsValidShopDomain(shop) {
		writeDetail(w, http.StatusBadRequest, "Invalid shop domain.")
		return
	}
	if code == "" || state == "" {
		writeDetail(w, http.StatusBadRequest, "Missing code or state.")
		return
	}
	if !auth.VerifyQueryHMAC(q, a.cfg.APISecret) {
		writeDetail(w, http.StatusBadRequest, "Invalid HMAC signature.")
		return
	}

	stateOK := false
	if cookie, err := r.Cookie(stateCookieName); err == nil && cookie.Value != "" {
		stateOK = cookie.Value == state || a.state.Verify(state, shop)
	} else {
		stateOK = a.state.Verify(state, shop)
	}
	if !stateOK {
		a.log.Warnw("oauth state invalid", "shop", shop)
		writeDetail(w, http.StatusBadRequest, "Invalid OAuth state.")
		return
	}

	accessToken, scope, err := a.client.ExchangeToken(r.Context(), shop, a.cfg.APIKey, a.cfg.APISecret, code)
	if err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	if accessToken == "" {
		writeDetail(w, http.StatusBadRequest, "Missing access token from Shopify.")
		return
	}
	if err := a.store.Upsert(r.Context(), shop, accessToken, shops.SplitScopes(scope)); err != nil {
		a.writeDomainError(w, r, shop, err)
		return
	}
	a.log.Infow("shop installed", "shop", shop)

	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	host := q.Get("host")
	if host == "" {
		host = shopify.EncodedHost(shop)
	}
	appURL := shopify.AdminAppURL(shop, a.cfg.AppHandle)
	if appURL == "" {
		appURL = a.returnURL(shop, host)
	}
	if appURL == "" {
		writeDetail(w, http.StatusInternalServerError, "Missing Shopify app URL.")
		return
	}
	http.Redirect(w, r, appURL, http.StatusFound)
}
