package shopify

import (
	"context"
	"net/http"
	"time"
)

// refreshMaxRetries is how many additional attempts are made on 5xx.
const refreshMaxRetries = 2

// refreshAheadWindow: a token expiring further than this in the future is
// not refreshed at all.
const refreshAheadWindow = 60 * time.Second

// TokenRefresher renews an access token via the refresh_token grant.
//
// Bodies never appear in its logs — both directions carry token material.
type TokenRefresher struct {
	Credentials Credentials
	HTTPClient  Doer
	Now         func() time.Time
}

// NewTokenRefresher returns a refresher over creds with default transport
// and clock.
func NewTokenRefresher(creds Credentials) TokenRefresher {
	return TokenRefresher{Credentials: creds}
}

func (r TokenRefresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Refresh renews token. Two short-circuits avoid the network entirely:
// an expired refresh token fails with refresh_token_expired (401, the user
// must re-authenticate), and a token still valid for more than 60s returns
// ok with no new token.
//
// 5xx responses are retried up to two more times with no delay; transport
// errors are terminal.
func (r TokenRefresher) Refresh(ctx context.Context, token *AccessToken) TokenResult {
	if r.Credentials.ClientID == "" || r.Credentials.ClientSecret == "" {
		return TokenResult{Result: configurationError("client credentials are not configured")}
	}
	if token == nil || token.Shop == "" || token.RefreshToken == "" {
		return TokenResult{Result: configurationError("refresh requires a token with shop and refresh token")}
	}

	now := r.now()
	if !token.RefreshTokenExpires.IsZero() && token.RefreshTokenExpires.Before(now) {
		out := statusFailure(CodeRefreshTokenExpired,
			"refresh token is expired, re-authentication required", http.StatusUnauthorized)
		out.Shop = token.Shop
		return TokenResult{Result: out}
	}
	if token.Expires.After(now.Add(refreshAheadWindow)) {
		return TokenResult{Result: Result{
			OK:       true,
			Shop:     token.Shop,
			Log:      LogEntry{Code: CodeTokenStillValid, Detail: "access token is still valid, refresh skipped"},
			Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
		}}
	}

	payload := map[string]string{
		"client_id":     r.Credentials.ClientID,
		"client_secret": r.Credentials.ClientSecret,
		"grant_type":    grantTypeRefreshToken,
		"refresh_token": token.RefreshToken,
	}

	doer := defaultDoer(r.HTTPClient)
	var httpLogs []LogEntry

	for attempt := 0; ; attempt++ {
		res, entry, err := postTokenRequest(ctx, doer, token.Shop, payload, false)
		if err != nil {
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeNetworkError, entry.Detail, http.StatusInternalServerError)
			out.Shop = token.Shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}
		}

		if res.status >= 500 && attempt < refreshMaxRetries {
			entry.Code = CodeRefreshError
			entry.Detail = "token endpoint returned " + http.StatusText(res.status) + ", retrying"
			httpLogs = append(httpLogs, entry)
			continue
		}

		switch {
		case res.status == http.StatusOK && res.parsed.AccessToken != "":
			entry.Code = CodeSuccess
			entry.Detail = "access token refreshed for shop " + token.Shop
			httpLogs = append(httpLogs, entry)
			return TokenResult{
				Result: Result{
					OK:       true,
					Shop:     token.Shop,
					Log:      LogEntry{Code: CodeSuccess, Detail: entry.Detail},
					Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
				},
				Token:    res.parsed.accessToken(token.AccessMode, token.Shop, r.now()),
				HTTPLogs: httpLogs,
			}

		case res.parsed.Error == "invalid_grant":
			entry.Code = CodeInvalidGrant
			entry.Detail = "token endpoint rejected the refresh token"
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeInvalidGrant, entry.Detail, http.StatusUnauthorized)
			out.Shop = token.Shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}

		case res.parsed.Error == "invalid_client":
			entry.Code = CodeInvalidClient
			entry.Detail = "token endpoint rejected the client credentials"
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeInvalidClient, entry.Detail, http.StatusInternalServerError)
			out.Shop = token.Shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}

		default:
			entry.Code = CodeRefreshError
			entry.Detail = "token refresh failed with status " + http.StatusText(res.status)
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeRefreshError, entry.Detail, http.StatusInternalServerError)
			out.Shop = token.Shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}
		}
	}
}
