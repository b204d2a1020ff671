package gateway

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopgate/internal/auth"
	"shopgate/internal/billing"
	"shopgate/internal/ratelimit"
	"shopgate/internal/shopify"
	"shopgate/internal/studio"
	"shopgate/pkg/config"
	"shopgate/pkg/shops"
)

// App is the gateway application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped work should use context.
type App struct {
	log     *zap.SugaredLogger
	cfg     config.Config
	store   shops.Store
	limiter ratelimit.Limiter
	client  *shopify.Client
	billing *billing.Service
	studio  *studio.Client

	verifier *auth.SessionVerifier
	state    *auth.StateManager

	// imageHTTP fetches CDN-hosted images for the data-URL proxy.
	imageHTTP *http.Client
}

// New constructs the App with its collaborators.
func New(log *zap.SugaredLogger, cfg config.Config, store shops.Store, limiter ratelimit.Limiter, client *shopify.Client, billingSvc *billing.Service, studioClient *studio.Client) *App {
	return &App{
		log:      log,
		cfg:      cfg,
		store:    store,
		limiter:  limiter,
		client:   client,
		billing:  billingSvc,
		studio:   studioClient,
		verifier: auth.NewSessionVerifier(cfg.APIKey, cfg.APISecret),
		state:    auth.NewStateManager(cfg.APISecret),
		imageHTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Verifier exposes the session verifier for the middleware chain.
func (a *App) Verifier() *auth.SessionVerifier { return a.verifier }

// appOrigin is the scheme+host of the configured embedded app URL, or "".
func (a *App) appOrigin() string {
	u, err := url.Parse(a.cfg.AppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// appURL is the absolute embedded app shell URL.
func (a *App) appURL() string {
	if a.appOrigin() != "" {
		return a.cfg.AppURL
	}
	return ""
}

// InstallURL builds the link a merchant follows to (re-)authorize the app.
// It points at our install endpoint when the app origin is known, else
// directly at the platform's consent screen.
func (a *App) InstallURL(shop, host string) string {
	if a.cfg.APIKey == "" || a.cfg.APISecret == "" || !shopify.IsValidShopDomain(shop) {
		return ""
	}
	origin := a.appOrigin()
	if origin == "" {
		state := a.state.Issue(shop)
		return shopify.AuthorizeURL(shop, a.cfg.APIKey, a.cfg.Scopes, a.cfg.OAuthCallbackURL, state)
	}
	q := url.Values{}
	q.Set("shop", shop)
	if host != "" {
		q.Set("host", host)
	}
	return origin + "/shopify/install?" + q.Encode()
}

// returnURL is where the platform sends the merchant after approving a
// subscription: the app shell, carrying shop and host when we have them.
func (a *App) returnURL(shop, host string) string {
	base := a.appURL()
	if base == "" {
		return ""
	}
	if shop == "" && host == "" {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	if shop != "" {
		q.Set("shop", shop)
	}
	if host != "" {
		q.Set("host", host)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// shopContext resolves the calling shop: the session-derived value is
// authoritative, a query parameter is accepted only for flows the session
// middleware exempts.
func shopContext(derived, queryShop string) string {
	if derived != "" {
		return derived
	}
	return strings.TrimSpace(queryShop)
}
