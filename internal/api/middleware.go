package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"appauth/internal/shopstore"
	"appauth/pkg/config"
	"appauth/pkg/shopify"
)

// Swapped out in tests.
var (
	timeNow           = time.Now
	newTokenRefresher = shopify.NewTokenRefresher
	newTokenExchanger = shopify.NewTokenExchanger
)

// TokenStore is the persistence the middleware needs; *shopstore.Store
// satisfies it and tests substitute a fake.
type TokenStore interface {
	Upsert(ctx context.Context, rec shopstore.Record) (*shopstore.Record, error)
	FindByShop(ctx context.Context, shop string) (*shopstore.Record, error)
	DeleteByShop(ctx context.Context, shop string) error
}

func credentialsFrom(cfg config.Config) shopify.Credentials {
	return shopify.Credentials{
		ClientID:        cfg.Shopify.APIKey,
		ClientSecret:    cfg.Shopify.APISecret,
		OldClientSecret: cfg.Shopify.OldAPISecret,
	}
}

// EmbeddedAuth authenticates admin-home requests (document and fetch
// shapes), ensures the shop has a usable access token — stored, refreshed
// or freshly exchanged from the request's id token — and attaches the
// session to the request context.
//
// On any failure the verifier's (or engine's) prebuilt response is relayed
// verbatim: redirects for document requests, 401s with the retry header for
// fetch requests.
func EmbeddedAuth(cfg config.Config, store TokenStore) func(http.Handler) http.Handler {
	verifier := shopify.NewAdminVerifier(credentialsFrom(cfg))
	verifier.PatchPath = cfg.Shopify.PatchTokenPath

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := shopify.FromHTTPRequest(r)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
				return
			}

			res := verifier.Verify(req)
			if !res.OK {
				res.Response.Write(w)
				return
			}

			token, failResp := ensureAccessToken(r.Context(), cfg, store, res)
			if failResp != nil {
				failResp.Write(w)
				return
			}

			for k, v := range res.Response.Headers {
				w.Header().Set(k, v)
			}
			session := &Session{
				Shop:          res.Shop,
				UserID:        res.UserID,
				Token:         token,
				RetryResponse: res.NewIDTokenResponse,
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// ExtensionAuth authenticates admin-UI-extension requests. Same token
// flow as EmbeddedAuth, but bearer-header only and CORS-preflight aware.
func ExtensionAuth(cfg config.Config, store TokenStore) func(http.Handler) http.Handler {
	verifier := shopify.NewAdminExtensionVerifier(credentialsFrom(cfg))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := shopify.FromHTTPRequest(r)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
				return
			}

			res := verifier.Verify(req)
			if !res.OK {
				res.Response.Write(w)
				return
			}

			token, failResp := ensureAccessToken(r.Context(), cfg, store, res)
			if failResp != nil {
				failResp.Write(w)
				return
			}

			session := &Session{
				Shop:          res.Shop,
				UserID:        res.UserID,
				Token:         token,
				RetryResponse: res.NewIDTokenResponse,
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// CheckoutExtensionAuth authenticates checkout/customer-account extension
// requests. Their tokens are not exchangeable, so no access token is
// acquired: the session carries identity only.
func CheckoutExtensionAuth(cfg config.Config) func(http.Handler) http.Handler {
	verifier := shopify.NewCheckoutExtensionVerifier(credentialsFrom(cfg))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := shopify.FromHTTPRequest(r)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
				return
			}

			res := verifier.Verify(req)
			if !res.OK {
				res.Response.Write(w)
				return
			}

			session := &Session{Shop: res.Shop, UserID: res.UserID}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// ProxyAuth authenticates storefront app-proxy requests and attaches the
// shop and the logged-in customer (when any) to the context.
func ProxyAuth(cfg config.Config) func(http.Handler) http.Handler {
	verifier := shopify.NewProxyVerifier(credentialsFrom(cfg))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req, err := shopify.FromHTTPRequest(r)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
				return
			}

			res := verifier.Verify(req)
			if !res.OK {
				res.Response.Write(w)
				return
			}

			identity := &ProxyIdentity{Shop: res.Shop, LoggedInCustomerID: res.LoggedInCustomerID}
			next.ServeHTTP(w, r.WithContext(WithProxyIdentity(r.Context(), identity)))
		})
	}
}

// ensureAccessToken makes sure the verified shop has a usable access
// token: a stored one when still good, a refreshed one when it is about to
// expire, or a freshly exchanged one from the request's id token. Fresh
// tokens are persisted before use.
func ensureAccessToken(ctx context.Context, cfg config.Config, store TokenStore, res shopify.IDTokenResult) (*shopify.AccessToken, *shopify.Response) {
	creds := credentialsFrom(cfg)

	if rec, err := store.FindByShop(ctx, res.Shop); err == nil {
		token := rec.Token()
		if token.RefreshToken == "" {
			// No refresh material (e.g. client-credentials token): reuse
			// until it expires, then fall through to a fresh exchange.
			if token.Expires.IsZero() || token.Expires.After(timeNow()) {
				return token, nil
			}
		} else {
			refresher := newTokenRefresher(creds)
			rres := refresher.Refresh(ctx, token)
			switch {
			case rres.OK && rres.Token != nil:
				if stored, err := store.Upsert(ctx, shopstore.FromToken(rres.Token)); err != nil {
					log.Printf("shop %s: persisting refreshed token failed: %v", res.Shop, err)
				} else {
					return stored.Token(), nil
				}
				return rres.Token, nil
			case rres.OK:
				// token_still_valid
				return token, nil
			case rres.Log.Code == shopify.CodeRefreshTokenExpired || rres.Log.Code == shopify.CodeInvalidGrant:
				// Refresh lineage is dead; exchange the request's id token.
			default:
				return nil, rres.Response
			}
		}
	}

	exchanger := newTokenExchanger(creds)
	eres := exchanger.Exchange(ctx, cfg.Shopify.AccessMode, res.IDToken, res.NewIDTokenResponse)
	if !eres.OK {
		return nil, eres.Response
	}
	if stored, err := store.Upsert(ctx, shopstore.FromToken(eres.Token)); err != nil {
		log.Printf("shop %s: persisting exchanged token failed: %v", res.Shop, err)
	} else {
		return stored.Token(), nil
	}
	return eres.Token, nil
}
