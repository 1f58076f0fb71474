package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// OAuth grant types accepted by the platform's token endpoint.
const (
	grantTypeTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
	grantTypeRefreshToken      = "refresh_token"
	grantTypeClientCredentials = "client_credentials"

	subjectTokenTypeIDToken = "urn:ietf:params:oauth:token-type:id_token"
	tokenTypeOnlineAccess   = "urn:shopify:params:oauth:token-type:online-access-token"
	tokenTypeOfflineAccess  = "urn:shopify:params:oauth:token-type:offline-access-token"
)

// Access modes for exchanged tokens.
const (
	AccessModeOnline  = "online"
	AccessModeOffline = "offline"
)

// Doer is the injectable HTTP transport. *http.Client satisfies it; tests
// substitute a fake. Timeout and cancellation policy belong to the Doer (or
// the ctx passed into each engine), not to this package.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

func defaultDoer(d Doer) Doer {
	if d != nil {
		return d
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// TokenUser identifies the merchant user an online access token is tied to.
type TokenUser struct {
	ID            int64  `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	AccountOwner  bool   `json:"account_owner"`
	Locale        string `json:"locale"`
	Collaborator  bool   `json:"collaborator"`
}

// AccessToken is a credential for the platform's admin API.
//
// Tokens from the token-exchange and refresh grants carry the refresh
// fields and, in online mode, the User; client-credentials tokens are
// always offline with no refresh fields and no user. Persistence is the
// caller's responsibility — nothing in this package stores tokens.
type AccessToken struct {
	AccessMode          string
	Shop                string
	Token               string
	Expires             time.Time
	Scope               string
	RefreshToken        string
	RefreshTokenExpires time.Time
	User                *TokenUser
}

// TokenResult is the outcome of a token grant. HTTPLogs holds one entry per
// attempt in order; Log mirrors the terminal outcome.
type TokenResult struct {
	Result
	Token    *AccessToken
	HTTPLogs []LogEntry
}

// tokenEndpoint is the shop-scoped OAuth token endpoint.
func tokenEndpoint(shop string) string {
	return fmt.Sprintf("https://%s/admin/oauth/access_token", ShopDomain(shop))
}

// tokenResponse is the platform's token endpoint payload, shared by all
// three grants. On error responses only Error/ErrorDescription are set.
type tokenResponse struct {
	AccessToken           string     `json:"access_token"`
	Scope                 string     `json:"scope"`
	ExpiresIn             int64      `json:"expires_in"`
	RefreshToken          string     `json:"refresh_token"`
	RefreshTokenExpiresIn int64      `json:"refresh_token_expires_in"`
	AssociatedUser        *TokenUser `json:"associated_user"`
	AssociatedUserScope   string     `json:"associated_user_scope"`
	Error                 string     `json:"error"`
	ErrorDescription      string     `json:"error_description"`
}

// accessToken maps a successful grant response onto an AccessToken.
func (tr tokenResponse) accessToken(mode, shop string, now time.Time) *AccessToken {
	t := &AccessToken{
		AccessMode:   mode,
		Shop:         shop,
		Token:        tr.AccessToken,
		Scope:        tr.Scope,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		t.Expires = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	if tr.RefreshTokenExpiresIn > 0 {
		t.RefreshTokenExpires = now.Add(time.Duration(tr.RefreshTokenExpiresIn) * time.Second)
	}
	if mode == AccessModeOnline {
		t.User = tr.AssociatedUser
		if tr.AssociatedUserScope != "" {
			t.Scope = tr.AssociatedUserScope
		}
	}
	return t
}

// tokenAttempt is one round trip against the token endpoint.
type tokenAttempt struct {
	status     int
	body       string
	retryAfter time.Duration
	parsed     tokenResponse
}

// postTokenRequest performs one attempt against the token endpoint.
// logBodies controls whether the request/response snapshots in the log
// entry include bodies; the refresh engine turns it off (token material).
func postTokenRequest(ctx context.Context, doer Doer, shop string, payload map[string]string, logBodies bool) (tokenAttempt, LogEntry, error) {
	body, _ := json.Marshal(payload)

	endpoint := tokenEndpoint(shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return tokenAttempt{}, LogEntry{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	snapshot := &Request{Method: http.MethodPost, URL: endpoint, Headers: Headers{"content-type": {"application/json"}}}
	if logBodies {
		snapshot.Body = string(body)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return tokenAttempt{}, LogEntry{
			Code:    CodeNetworkError,
			Detail:  "token endpoint request failed: " + err.Error(),
			Request: snapshot,
		}, err
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return tokenAttempt{}, LogEntry{
			Code:    CodeNetworkError,
			Detail:  "token endpoint response could not be read: " + readErr.Error(),
			Request: snapshot,
		}, readErr
	}

	attempt := tokenAttempt{
		status:     resp.StatusCode,
		body:       string(b),
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
	_ = json.Unmarshal(b, &attempt.parsed)

	logResp := &Response{Status: resp.StatusCode, Headers: flattenHeader(resp.Header)}
	if logBodies {
		logResp.Body = attempt.body
	}
	return attempt, LogEntry{Request: snapshot, Response: logResp}, nil
}

// parseRetryAfter reads a Retry-After header in seconds; missing or
// malformed values fall back to 1s.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return time.Second
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
