package api

import (
	"net/http"

	"appauth/pkg/config"
	"appauth/pkg/shopify"
)

// Handlers serves the shop-scoped endpoints behind the embedded auth
// middlewares.
type Handlers struct {
	Cfg     config.Config
	GraphQL shopify.GraphQLClient
}

// Shop echoes the authenticated identity; the embedded UI uses it to
// bootstrap.
func (h Handlers) Shop(w http.ResponseWriter, r *http.Request) {
	s := SessionFromContext(r.Context())
	if s == nil {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}

	out := map[string]any{
		"shop":    s.Shop,
		"user_id": s.UserID,
	}
	if s.Token != nil {
		out["access_mode"] = s.Token.AccessMode
		out["scope"] = s.Token.Scope
	}
	WriteJSON(w, http.StatusOK, out)
}

const productsQuery = `
query Products($first: Int!) {
  products(first: $first) {
    edges { node { id title handle } }
  }
}`

// Products runs an admin GraphQL query with the session's access token.
// On a 401 from the admin API the verifier's retry response is relayed, so
// the embedded client mints a fresh id token and replays the request.
func (h Handlers) Products(w http.ResponseWriter, r *http.Request) {
	s := SessionFromContext(r.Context())
	if s == nil || s.Token == nil {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}

	res := h.GraphQL.Execute(r.Context(), shopify.GraphQLRequest{
		Shop:                 s.Shop,
		AccessToken:          s.Token.Token,
		APIVersion:           h.Cfg.Shopify.APIVersion,
		Query:                productsQuery,
		Variables:            map[string]any{"first": 20},
		InvalidTokenResponse: s.RetryResponse,
	})
	if !res.OK {
		res.Response.Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// ProxyPing answers verified storefront proxy requests with the identity
// the signature proved.
func (h Handlers) ProxyPing(w http.ResponseWriter, r *http.Request) {
	p := ProxyIdentityFromContext(r.Context())
	if p == nil {
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing proxy identity")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"shop":                  p.Shop,
		"logged_in_customer_id": p.LoggedInCustomerID,
	})
}
