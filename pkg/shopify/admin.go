package shopify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultPatchPath is where document requests are bounced to mint a fresh
// ID token when none (or an invalid one) arrived.
const DefaultPatchPath = "/patch_shopify_id_token"

// appBridgeScriptURL is preloaded on successful document responses so the
// embedded page can boot app-bridge without an extra round trip.
const appBridgeScriptURL = "https://cdn.shopify.com/shopifycloud/app-bridge.js"

// AdminVerifier authenticates requests from the embedded admin home surface.
//
// Two request shapes are supported: "fetch" requests carry the ID token as
// an Authorization bearer header and are answered with JSON-friendly 401s on
// failure; "document" requests (full page loads inside the admin iframe)
// carry it as an `id_token` query parameter and are bounced via a 302 to
// PatchPath when the token is missing or bad, so the client can mint a fresh
// token and resume.
type AdminVerifier struct {
	Credentials Credentials

	// PatchPath is the app path that serves the token-patching bounce page.
	// Empty means DefaultPatchPath.
	PatchPath string

	Now func() time.Time
}

// NewAdminVerifier returns an AdminVerifier with the default patch path.
func NewAdminVerifier(creds Credentials) AdminVerifier {
	return AdminVerifier{Credentials: creds}
}

func (v AdminVerifier) patchPath() string {
	if v.PatchPath != "" {
		return v.PatchPath
	}
	return DefaultPatchPath
}

// Verify authenticates an admin home request in either shape.
func (v AdminVerifier) Verify(req Request) IDTokenResult {
	if v.Credentials.ClientID == "" || v.Credentials.ClientSecret == "" {
		return IDTokenResult{Result: configurationError("client credentials are not configured")}
	}
	if req.Method == "" || req.Headers == nil || req.URL == "" {
		return IDTokenResult{Result: configurationError("admin request is missing method, headers or url")}
	}

	params, err := url.ParseQuery(req.query())
	if err != nil {
		return IDTokenResult{Result: configurationError("admin request query string could not be parsed")}
	}

	fetchMode := req.Headers.Has("authorization")
	var token string
	if fetchMode {
		token = bearerToken(req.Headers)
	} else {
		token = params.Get("id_token")
	}

	if token == "" {
		if fetchMode {
			return IDTokenResult{Result: failure(CodeMissingAuthorizationHeader,
				"authorization header is not a bearer token", fetchRetryResponse())}
		}
		return IDTokenResult{Result: failure(CodeRedirectToPatchPage,
			"document request has no id token, redirecting to patch page",
			v.patchRedirectResponse(req, params))}
	}

	claims, code, detail := decodeIDToken(token, v.Credentials, v.Now)
	if code != "" {
		if fetchMode {
			return IDTokenResult{Result: failure(code, detail, fetchRetryResponse())}
		}
		return IDTokenResult{Result: failure(CodeRedirectToPatchPage,
			detail+", redirecting to patch page",
			v.patchRedirectResponse(req, params))}
	}

	idToken := &IDToken{Exchangeable: true, Token: token, Claims: claims}
	shop := idToken.Shop()

	resp := &Response{Status: http.StatusOK, Headers: map[string]string{}}
	var retry *Response
	if fetchMode {
		retry = fetchRetryResponse()
	} else {
		// Document responses render inside the admin iframe: pin the
		// frame ancestors and preload app-bridge.
		resp.Headers["Content-Security-Policy"] = fmt.Sprintf(
			"frame-ancestors https://%s https://admin.shopify.com;", ShopDomain(shop))
		resp.Headers["Link"] = fmt.Sprintf("<%s>; rel=\"preload\"; as=\"script\"", appBridgeScriptURL)
		retry = v.patchRedirectResponse(req, params)
	}

	return IDTokenResult{
		Result: Result{
			OK:       true,
			Shop:     shop,
			Log:      LogEntry{Code: CodeVerified, Detail: "admin id token verified for shop " + shop},
			Response: resp,
		},
		IDToken:            idToken,
		UserID:             idToken.UserID(),
		NewIDTokenResponse: retry,
	}
}

func fetchRetryResponse() *Response {
	return &Response{
		Status:  http.StatusUnauthorized,
		Headers: map[string]string{RetryRequestHeader: "1"},
	}
}

// patchRedirectResponse builds the 302 that bounces a document request to
// the patch page. All query parameters except id_token are preserved, and
// shopify-reload points back at the original path (id_token stripped) so
// the flow resumes where it left off once a fresh token exists.
func (v AdminVerifier) patchRedirectResponse(req Request, params url.Values) *Response {
	preserved := url.Values{}
	for k, vs := range params {
		if k == "id_token" {
			continue
		}
		preserved[k] = vs
	}

	reload := req.path()
	if enc := preserved.Encode(); enc != "" {
		reload += "?" + enc
	}

	q := url.Values{}
	for k, vs := range preserved {
		q[k] = vs
	}
	q.Set("shopify-reload", reload)

	return &Response{
		Status: http.StatusFound,
		Headers: map[string]string{
			"Location": v.patchPath() + "?" + q.Encode(),
		},
	}
}
