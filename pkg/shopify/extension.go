package shopify

import (
	"net/http"
	"strings"
	"time"
)

// IDTokenResult is the outcome of verifying an ID-token-bearing surface.
//
// For exchangeable surfaces, NewIDTokenResponse is a prebuilt response the
// caller holds on to and attaches to a later failed downstream API call: it
// tells the embedded client to mint a fresh ID token and retry the original
// request coherently.
type IDTokenResult struct {
	Result
	IDToken            *IDToken
	UserID             string
	NewIDTokenResponse *Response
}

// ExtensionVerifier authenticates requests from extension surfaces, where
// the ID token always arrives as an Authorization bearer header.
//
// Admin-UI extensions run exchangeable: failures after the header is present
// carry the retry header so app-bridge mints a fresh token and retries.
// Checkout and customer-account extensions are non-exchangeable and get
// plain 401s.
type ExtensionVerifier struct {
	Credentials  Credentials
	Exchangeable bool
	Now          func() time.Time
}

// NewAdminExtensionVerifier verifies admin-UI extension requests
// (exchangeable tokens).
func NewAdminExtensionVerifier(creds Credentials) ExtensionVerifier {
	return ExtensionVerifier{Credentials: creds, Exchangeable: true}
}

// NewCheckoutExtensionVerifier verifies checkout and customer-account
// extension requests (non-exchangeable tokens).
func NewCheckoutExtensionVerifier(creds Credentials) ExtensionVerifier {
	return ExtensionVerifier{Credentials: creds, Exchangeable: false}
}

// Verify checks the bearer ID token. CORS preflights short-circuit to a 204
// before the header is required.
func (v ExtensionVerifier) Verify(req Request) IDTokenResult {
	if v.Credentials.ClientID == "" || v.Credentials.ClientSecret == "" {
		return IDTokenResult{Result: configurationError("client credentials are not configured")}
	}
	if req.Method == "" || req.Headers == nil {
		return IDTokenResult{Result: configurationError("extension request is missing method or headers")}
	}

	if resp := corsPreflightResponse(req); resp != nil {
		return IDTokenResult{Result: failure(CodeOptionsRequest, "CORS preflight answered", resp)}
	}

	token := bearerToken(req.Headers)
	if token == "" {
		return IDTokenResult{Result: statusFailure(CodeMissingAuthorizationHeader,
			"no bearer id token on extension request", http.StatusUnauthorized)}
	}

	claims, code, detail := decodeIDToken(token, v.Credentials, v.Now)
	if code != "" {
		resp := &Response{Status: http.StatusUnauthorized, Headers: map[string]string{}}
		if v.Exchangeable {
			// The header was present but the token is bad: tell the
			// embedded client to mint a fresh one and retry.
			resp.Headers[RetryRequestHeader] = "1"
		}
		return IDTokenResult{Result: failure(code, detail, resp)}
	}

	idToken := &IDToken{Exchangeable: v.Exchangeable, Token: token, Claims: claims}
	res := IDTokenResult{
		Result: Result{
			OK:       true,
			Shop:     idToken.Shop(),
			Log:      LogEntry{Code: CodeVerified, Detail: "extension id token verified for shop " + idToken.Shop()},
			Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
		},
		IDToken: idToken,
		UserID:  idToken.UserID(),
	}
	if v.Exchangeable {
		res.NewIDTokenResponse = &Response{
			Status:  http.StatusUnauthorized,
			Headers: map[string]string{RetryRequestHeader: "1"},
		}
	}
	return res
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(h Headers) string {
	authz := strings.TrimSpace(h.Get("authorization"))
	if len(authz) < 7 || !strings.EqualFold(authz[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[7:])
}

// corsPreflightResponse returns the 204 preflight answer for an OPTIONS
// request whose Origin differs from the request's own origin, or nil when
// the request is not a cross-origin preflight.
func corsPreflightResponse(req Request) *Response {
	if req.Method != http.MethodOptions {
		return nil
	}
	origin := req.Headers.Get("origin")
	if origin == "" || origin == requestOrigin(req) {
		return nil
	}
	return &Response{
		Status: http.StatusNoContent,
		Headers: map[string]string{
			"Access-Control-Allow-Origin":  origin,
			"Access-Control-Allow-Methods": "GET, POST, PUT, PATCH, DELETE, OPTIONS",
			"Access-Control-Allow-Headers": "Authorization, Content-Type",
			"Access-Control-Max-Age":       "7200",
			"Vary":                         "Origin",
		},
	}
}

// requestOrigin derives scheme://host from the request URL and Host header
// so same-origin OPTIONS requests are not mistaken for preflights.
func requestOrigin(req Request) string {
	u := req.URL
	if strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://") {
		rest := u[strings.Index(u, "://")+3:]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		return u[:strings.Index(u, "://")+3] + rest
	}
	host := req.Headers.Get("host")
	if host == "" {
		return ""
	}
	return "https://" + host
}
