package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
)

// BodyHMACVerifier authenticates POST requests whose body is signed with
// base64(HMAC-SHA256(body, clientSecret)): webhooks and flow-action calls.
//
// HMACHeaders and ShopHeaders are checked in order; the first present header
// wins. Use NewWebhookVerifier / NewFlowActionVerifier for the standard
// header sets.
type BodyHMACVerifier struct {
	Credentials Credentials
	Surface     string
	HMACHeaders []string
	ShopHeaders []string
}

// NewWebhookVerifier accepts the current and legacy webhook header names.
func NewWebhookVerifier(creds Credentials) BodyHMACVerifier {
	return BodyHMACVerifier{
		Credentials: creds,
		Surface:     "webhook",
		HMACHeaders: []string{"x-shopify-hmac-sha256", "shopify-hmac-sha256"},
		ShopHeaders: []string{"x-shopify-shop-domain", "shopify-shop-domain"},
	}
}

// NewFlowActionVerifier accepts only the current header names.
func NewFlowActionVerifier(creds Credentials) BodyHMACVerifier {
	return BodyHMACVerifier{
		Credentials: creds,
		Surface:     "flow_action",
		HMACHeaders: []string{"x-shopify-hmac-sha256"},
		ShopHeaders: []string{"x-shopify-shop-domain"},
	}
}

// Verify checks the request's body signature. On success the result carries
// the shop label (domain suffix stripped) and a 200 response; on failure the
// response is safe to relay as-is.
func (v BodyHMACVerifier) Verify(req Request) Result {
	if v.Credentials.ClientSecret == "" {
		return configurationError("client secret is not configured")
	}
	if req.Method == "" || req.Headers == nil || req.Body == "" {
		return configurationError(fmt.Sprintf("%s request is missing method, headers or body", v.Surface))
	}
	if req.Method != http.MethodPost {
		return statusFailure(CodePostMethodExpected,
			fmt.Sprintf("%s requests must use POST, got %s", v.Surface, req.Method),
			http.StatusMethodNotAllowed)
	}

	received := ""
	for _, name := range v.HMACHeaders {
		if val := req.Headers.Get(name); val != "" {
			received = val
			break
		}
	}
	if received == "" {
		return statusFailure(CodeMissingHMACHeader,
			fmt.Sprintf("no HMAC header present on %s request", v.Surface),
			http.StatusBadRequest)
	}

	if !verifyBodyHMAC([]byte(req.Body), received, v.Credentials) {
		return statusFailure(CodeInvalidHMAC,
			fmt.Sprintf("%s HMAC did not match request body", v.Surface),
			http.StatusUnauthorized)
	}

	shop := ""
	for _, name := range v.ShopHeaders {
		if val := req.Headers.Get(name); val != "" {
			shop = NormalizeShop(val)
			break
		}
	}

	return Result{
		OK:       true,
		Shop:     shop,
		Log:      LogEntry{Code: CodeVerified, Detail: fmt.Sprintf("%s request verified for shop %s", v.Surface, shop)},
		Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
	}
}

// verifyBodyHMAC compares the received signature against both configured
// secrets so signatures minted during a secret rotation keep verifying.
func verifyBodyHMAC(body []byte, received string, creds Credentials) bool {
	for _, secret := range creds.secrets() {
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write(body)
		expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(received)) {
			return true
		}
	}
	return false
}
