package shopify

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func extensionRequest(token string) Request {
	h := Headers{}
	if token != "" {
		h.Set("authorization", "Bearer "+token)
	}
	h.Set("host", "app.example.com")
	return Request{Method: http.MethodGet, URL: "/v1/extension/data", Headers: h}
}

func adminExtensionVerifier() ExtensionVerifier {
	v := NewAdminExtensionVerifier(testCreds())
	v.Now = fixedNow
	return v
}

func checkoutExtensionVerifier() ExtensionVerifier {
	v := NewCheckoutExtensionVerifier(testCreds())
	v.Now = fixedNow
	return v
}

func TestExtensionVerify_AdminSuccess(t *testing.T) {
	token := mintIDToken(t, "test-secret", nil)
	res := adminExtensionVerifier().Verify(extensionRequest(token))
	if !res.OK {
		t.Fatalf("expected ok, got %s: %s", res.Log.Code, res.Log.Detail)
	}
	if res.Shop != "test-shop" || res.UserID != "42" {
		t.Fatalf("unexpected identity: shop=%q user=%q", res.Shop, res.UserID)
	}
	if res.IDToken == nil || !res.IDToken.Exchangeable {
		t.Fatal("admin extension tokens must be exchangeable")
	}
	if res.NewIDTokenResponse == nil ||
		res.NewIDTokenResponse.Status != http.StatusUnauthorized ||
		res.NewIDTokenResponse.Headers[RetryRequestHeader] != "1" {
		t.Fatalf("expected precomputed 401 retry response, got %+v", res.NewIDTokenResponse)
	}
}

func TestExtensionVerify_CheckoutNotExchangeable(t *testing.T) {
	token := mintIDToken(t, "test-secret", nil)
	res := checkoutExtensionVerifier().Verify(extensionRequest(token))
	if !res.OK {
		t.Fatalf("expected ok, got %s", res.Log.Code)
	}
	if res.IDToken.Exchangeable {
		t.Fatal("checkout extension tokens must not be exchangeable")
	}
	if res.NewIDTokenResponse != nil {
		t.Fatal("non-exchangeable surface must not precompute a retry response")
	}
}

func TestExtensionVerify_MissingHeader(t *testing.T) {
	res := adminExtensionVerifier().Verify(extensionRequest(""))
	if res.OK || res.Log.Code != CodeMissingAuthorizationHeader {
		t.Fatalf("expected missing_authorization_header, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	// No retry header before a token was ever presented.
	if res.Response.Headers[RetryRequestHeader] != "" {
		t.Fatal("missing-header failure must not carry the retry header")
	}
}

func TestExtensionVerify_RetryHeaderOnBadToken(t *testing.T) {
	forged := mintIDToken(t, "wrong-secret", nil)

	res := adminExtensionVerifier().Verify(extensionRequest(forged))
	if res.OK || res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got ok=%v status=%d", res.OK, res.Response.Status)
	}
	if res.Response.Headers[RetryRequestHeader] != "1" {
		t.Fatal("admin extension failure must carry the retry header")
	}

	res = checkoutExtensionVerifier().Verify(extensionRequest(forged))
	if res.Response.Headers[RetryRequestHeader] != "" {
		t.Fatal("checkout extension failure must not carry the retry header")
	}
}

func TestExtensionVerify_WrongAudience(t *testing.T) {
	token := mintIDToken(t, "test-secret", func(c jwt.MapClaims) { c["aud"] = "other-app" })
	res := adminExtensionVerifier().Verify(extensionRequest(token))
	if res.Log.Code != CodeInvalidAud || res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected invalid_aud/401, got %s/%d", res.Log.Code, res.Response.Status)
	}
}

func TestExtensionVerify_CORSPreflight(t *testing.T) {
	req := Request{
		Method: http.MethodOptions,
		URL:    "/v1/extension/data",
		Headers: NewHeaders(map[string][]string{
			"Origin": {"https://extensions.shopifycdn.com"},
			"Host":   {"app.example.com"},
		}),
	}
	res := checkoutExtensionVerifier().Verify(req)
	if res.OK || res.Log.Code != CodeOptionsRequest {
		t.Fatalf("expected options_request short-circuit, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if res.Response.Status != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Response.Status)
	}
	if res.Response.Headers["Access-Control-Allow-Origin"] != "https://extensions.shopifycdn.com" {
		t.Fatalf("expected origin echoed, got %q", res.Response.Headers["Access-Control-Allow-Origin"])
	}

	// Same-origin OPTIONS is not a preflight: falls through to the header check.
	sameOrigin := Request{
		Method: http.MethodOptions,
		URL:    "/v1/extension/data",
		Headers: NewHeaders(map[string][]string{
			"Origin": {"https://app.example.com"},
			"Host":   {"app.example.com"},
		}),
	}
	res = checkoutExtensionVerifier().Verify(sameOrigin)
	if res.Log.Code != CodeMissingAuthorizationHeader {
		t.Fatalf("expected same-origin OPTIONS to fall through, got %s", res.Log.Code)
	}
}
