package shopify

import (
	"context"
	"net/http"
	"regexp"
	"time"
)

// clientCredentialsLifetime is the platform's nominal lifetime for
// client-credentials tokens when the response does not say otherwise.
const clientCredentialsLifetime = 24 * time.Hour

// shopLabelPattern matches a bare shop label. Domain suffixes and any other
// punctuation are rejected before a URL is ever built from the value.
var shopLabelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// ClientCredentials obtains a server-to-server access token for shop (a
// bare label, e.g. "my-shop") without any ID token. The resulting token is
// always offline, has no refresh fields and no user.
//
// Single attempt: errors classify as invalid_client (500), exchange_error
// (500) or network_error (500, never retried).
func (e TokenExchanger) ClientCredentials(ctx context.Context, shop string) TokenResult {
	if e.Credentials.ClientID == "" || e.Credentials.ClientSecret == "" {
		return TokenResult{Result: configurationError("client credentials are not configured")}
	}
	if !shopLabelPattern.MatchString(shop) {
		return TokenResult{Result: configurationError("shop must be a bare shop label, got " + shop)}
	}

	payload := map[string]string{
		"client_id":     e.Credentials.ClientID,
		"client_secret": e.Credentials.ClientSecret,
		"grant_type":    grantTypeClientCredentials,
	}

	res, entry, err := postTokenRequest(ctx, defaultDoer(e.HTTPClient), shop, payload, true)
	if err != nil {
		out := statusFailure(CodeNetworkError, entry.Detail, http.StatusInternalServerError)
		out.Shop = shop
		return TokenResult{Result: out, HTTPLogs: []LogEntry{entry}}
	}

	switch {
	case res.status == http.StatusOK && res.parsed.AccessToken != "":
		entry.Code = CodeSuccess
		entry.Detail = "client credentials token obtained for shop " + shop
		token := res.parsed.accessToken(AccessModeOffline, shop, e.now())
		if res.parsed.ExpiresIn <= 0 {
			token.Expires = e.now().Add(clientCredentialsLifetime)
		}
		return TokenResult{
			Result: Result{
				OK:       true,
				Shop:     shop,
				Log:      LogEntry{Code: CodeSuccess, Detail: entry.Detail},
				Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
			},
			Token:    token,
			HTTPLogs: []LogEntry{entry},
		}

	case res.parsed.Error == "invalid_client":
		entry.Code = CodeInvalidClient
		entry.Detail = "token endpoint rejected the client credentials"
		out := statusFailure(CodeInvalidClient, entry.Detail, http.StatusInternalServerError)
		out.Shop = shop
		return TokenResult{Result: out, HTTPLogs: []LogEntry{entry}}

	default:
		entry.Code = CodeExchangeError
		entry.Detail = "client credentials grant failed with status " + http.StatusText(res.status)
		out := statusFailure(CodeExchangeError, entry.Detail, http.StatusInternalServerError)
		out.Shop = shop
		return TokenResult{Result: out, HTTPLogs: []LogEntry{entry}}
	}
}
