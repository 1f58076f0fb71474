package api

import (
	"context"

	"appauth/pkg/shopify"
)

type ctxKey string

const (
	ctxKeySession ctxKey = "session"
	ctxKeyProxy   ctxKey = "proxy"
)

// Session is the authenticated identity attached to admin and extension
// requests. RetryResponse is the verifier's precomputed "mint a new id
// token and retry" response, handed to the GraphQL executor so a downstream
// 401 tells the embedded client to recover.
type Session struct {
	Shop          string
	UserID        string
	Token         *shopify.AccessToken
	RetryResponse *shopify.Response
}

// ProxyIdentity is the identity attached to verified app-proxy requests.
// LoggedInCustomerID is a storefront customer, never a merchant user.
type ProxyIdentity struct {
	Shop               string
	LoggedInCustomerID string
}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(ctxKeySession).(*Session)
	return s
}

func WithProxyIdentity(ctx context.Context, p *ProxyIdentity) context.Context {
	return context.WithValue(ctx, ctxKeyProxy, p)
}

func ProxyIdentityFromContext(ctx context.Context) *ProxyIdentity {
	p, _ := ctx.Value(ctxKeyProxy).(*ProxyIdentity)
	return p
}
