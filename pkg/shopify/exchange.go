package shopify

import (
	"context"
	"net/http"
	"time"
)

// tokenExchangeMaxRetries is how many additional attempts are made when the
// token endpoint answers 429.
const tokenExchangeMaxRetries = 2

// TokenExchanger trades an exchangeable ID token for an access token, and
// also serves the client-credentials grant (see clientcredentials.go).
//
// HTTPClient, Sleep and Now are injectable for tests; zero values mean a
// default client with a 15s timeout, time.Sleep and time.Now.
type TokenExchanger struct {
	Credentials Credentials
	HTTPClient  Doer
	Sleep       func(time.Duration)
	Now         func() time.Time
}

// NewTokenExchanger returns an exchanger over creds with default transport,
// sleep and clock.
func NewTokenExchanger(creds Credentials) TokenExchanger {
	return TokenExchanger{Credentials: creds}
}

func (e TokenExchanger) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (e TokenExchanger) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Exchange performs the token-exchange grant for accessMode ("online" or
// "offline"). invalidTokenResponse, when supplied by the verifier that
// produced idToken, is relayed on invalid_subject_token so the embedded
// client can mint a fresh ID token and retry the original request; pass nil
// to get a plain 401 instead.
//
// 429 responses are retried up to two more times, honoring Retry-After.
// Transport errors are terminal and never retried.
func (e TokenExchanger) Exchange(ctx context.Context, accessMode string, idToken *IDToken, invalidTokenResponse *Response) TokenResult {
	if e.Credentials.ClientID == "" || e.Credentials.ClientSecret == "" {
		return TokenResult{Result: configurationError("client credentials are not configured")}
	}
	if accessMode != AccessModeOnline && accessMode != AccessModeOffline {
		return TokenResult{Result: configurationError("access mode must be online or offline, got " + accessMode)}
	}
	if idToken == nil || idToken.Token == "" {
		return TokenResult{Result: configurationError("token exchange requires an id token")}
	}
	if !idToken.Exchangeable {
		return TokenResult{Result: configurationError("id token from this surface is not exchangeable")}
	}
	dest, _ := idToken.Claims["dest"].(string)
	if !ReferencesPlatform(dest) {
		return TokenResult{Result: configurationError("id token dest does not reference the platform domain")}
	}
	shop := NormalizeShop(dest)

	requestedType := tokenTypeOfflineAccess
	if accessMode == AccessModeOnline {
		requestedType = tokenTypeOnlineAccess
	}
	payload := map[string]string{
		"client_id":            e.Credentials.ClientID,
		"client_secret":        e.Credentials.ClientSecret,
		"grant_type":           grantTypeTokenExchange,
		"subject_token":        idToken.Token,
		"subject_token_type":   subjectTokenTypeIDToken,
		"requested_token_type": requestedType,
	}

	doer := defaultDoer(e.HTTPClient)
	var httpLogs []LogEntry

	for attempt := 0; ; attempt++ {
		res, entry, err := postTokenRequest(ctx, doer, shop, payload, true)
		if err != nil {
			// Transport failures are terminal: the request may have been
			// half-sent, so no retry.
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeNetworkError, entry.Detail, http.StatusInternalServerError)
			out.Shop = shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}
		}

		switch {
		case res.status == http.StatusOK && res.parsed.AccessToken != "":
			entry.Code = CodeSuccess
			entry.Detail = "access token obtained for shop " + shop
			httpLogs = append(httpLogs, entry)
			return TokenResult{
				Result: Result{
					OK:       true,
					Shop:     shop,
					Log:      LogEntry{Code: CodeSuccess, Detail: entry.Detail},
					Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
				},
				Token:    res.parsed.accessToken(accessMode, shop, e.now()),
				HTTPLogs: httpLogs,
			}

		case res.status == http.StatusTooManyRequests:
			entry.Code = CodeRateLimited
			entry.Detail = "token endpoint rate limited the exchange"
			httpLogs = append(httpLogs, entry)
			if attempt < tokenExchangeMaxRetries {
				e.sleep(res.retryAfter)
				continue
			}
			out := statusFailure(CodeRateLimitExceeded,
				"token exchange retries exhausted after repeated 429s", http.StatusTooManyRequests)
			out.Shop = shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}

		case res.parsed.Error == "invalid_subject_token":
			entry.Code = CodeInvalidSubjectToken
			entry.Detail = "token endpoint rejected the id token"
			httpLogs = append(httpLogs, entry)
			resp := invalidTokenResponse
			if resp == nil {
				resp = &Response{Status: http.StatusUnauthorized, Headers: map[string]string{}}
			}
			out := failure(CodeInvalidSubjectToken, entry.Detail, resp)
			out.Shop = shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}

		case res.parsed.Error == "invalid_client":
			entry.Code = CodeInvalidClient
			entry.Detail = "token endpoint rejected the client credentials (app uninstalled or secret mismatch)"
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeInvalidClient, entry.Detail, http.StatusInternalServerError)
			out.Shop = shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}

		default:
			entry.Code = CodeExchangeError
			entry.Detail = "token exchange failed with status " + http.StatusText(res.status)
			httpLogs = append(httpLogs, entry)
			out := statusFailure(CodeExchangeError, entry.Detail, http.StatusInternalServerError)
			out.Shop = shop
			return TokenResult{Result: out, HTTPLogs: httpLogs}
		}
	}
}
