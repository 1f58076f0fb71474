package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"testing"
)

func signBody(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(body))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookRequest(body, secret string) Request {
	return Request{
		Method: http.MethodPost,
		URL:    "/v1/webhooks/shopify/orders_paid",
		Body:   body,
		Headers: NewHeaders(map[string][]string{
			"X-Shopify-Hmac-Sha256": {signBody(body, secret)},
			"X-Shopify-Shop-Domain": {"test-shop.myshopify.com"},
		}),
	}
}

func TestWebhookVerify_Valid(t *testing.T) {
	creds := Credentials{ClientID: "key", ClientSecret: "secret"}
	res := NewWebhookVerifier(creds).Verify(webhookRequest(`{"id":1}`, "secret"))
	if !res.OK {
		t.Fatalf("expected ok, got %s: %s", res.Log.Code, res.Log.Detail)
	}
	if res.Shop != "test-shop" {
		t.Fatalf("expected shop label test-shop, got %q", res.Shop)
	}
	if res.Response.Status != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Response.Status)
	}
}

func TestWebhookVerify_BodyTamper(t *testing.T) {
	creds := Credentials{ClientID: "key", ClientSecret: "secret"}
	req := webhookRequest(`{"id":1}`, "secret")
	req.Body = `{"id":2}`
	res := NewWebhookVerifier(creds).Verify(req)
	if res.OK || res.Log.Code != CodeInvalidHMAC {
		t.Fatalf("expected invalid_hmac, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Response.Status)
	}
}

func TestWebhookVerify_HeaderTamper(t *testing.T) {
	creds := Credentials{ClientID: "key", ClientSecret: "secret"}
	req := webhookRequest(`{"id":1}`, "secret")
	sig := req.Headers.Get("x-shopify-hmac-sha256")
	// Flip one character of the signature.
	flipped := "A" + sig[1:]
	if flipped == sig {
		flipped = "B" + sig[1:]
	}
	req.Headers.Set("x-shopify-hmac-sha256", flipped)
	res := NewWebhookVerifier(creds).Verify(req)
	if res.OK || res.Log.Code != CodeInvalidHMAC {
		t.Fatalf("expected invalid_hmac, got ok=%v code=%s", res.OK, res.Log.Code)
	}
}

func TestWebhookVerify_SecretRotation(t *testing.T) {
	req := webhookRequest(`{"id":1}`, "old-secret")

	withOld := Credentials{ClientID: "key", ClientSecret: "new-secret", OldClientSecret: "old-secret"}
	if res := NewWebhookVerifier(withOld).Verify(req); !res.OK {
		t.Fatalf("expected old-secret signature to verify during rotation, got %s", res.Log.Code)
	}

	withoutOld := Credentials{ClientID: "key", ClientSecret: "new-secret"}
	if res := NewWebhookVerifier(withoutOld).Verify(req); res.OK {
		t.Fatal("expected old-secret signature to fail once rotation window closed")
	}
}

func TestWebhookVerify_LegacyHeaderName(t *testing.T) {
	creds := Credentials{ClientID: "key", ClientSecret: "secret"}
	req := Request{
		Method: http.MethodPost,
		URL:    "/v1/webhooks/shopify/orders_paid",
		Body:   `{}`,
		Headers: NewHeaders(map[string][]string{
			"Shopify-Hmac-Sha256": {signBody(`{}`, "secret")},
			"Shopify-Shop-Domain": {"legacy.myshopify.com"},
		}),
	}
	res := NewWebhookVerifier(creds).Verify(req)
	if !res.OK || res.Shop != "legacy" {
		t.Fatalf("expected legacy headers to verify, got ok=%v shop=%q", res.OK, res.Shop)
	}

	// Flow actions accept only the current header names.
	if res := NewFlowActionVerifier(creds).Verify(req); res.OK || res.Log.Code != CodeMissingHMACHeader {
		t.Fatalf("expected flow action to reject legacy header, got ok=%v code=%s", res.OK, res.Log.Code)
	}
}

func TestWebhookVerify_MethodAndStructure(t *testing.T) {
	creds := Credentials{ClientID: "key", ClientSecret: "secret"}

	req := webhookRequest(`{}`, "secret")
	req.Method = http.MethodGet
	res := NewWebhookVerifier(creds).Verify(req)
	if res.Log.Code != CodePostMethodExpected || res.Response.Status != http.StatusMethodNotAllowed {
		t.Fatalf("expected post_method_expected/405, got %s/%d", res.Log.Code, res.Response.Status)
	}

	empty := webhookRequest(`{}`, "secret")
	empty.Body = ""
	res = NewWebhookVerifier(creds).Verify(empty)
	if res.Log.Code != CodeConfigurationError || res.Response.Status != http.StatusInternalServerError {
		t.Fatalf("expected configuration_error/500, got %s/%d", res.Log.Code, res.Response.Status)
	}

	noHeader := webhookRequest(`{}`, "secret")
	delete(noHeader.Headers, "x-shopify-hmac-sha256")
	res = NewWebhookVerifier(creds).Verify(noHeader)
	if res.Log.Code != CodeMissingHMACHeader || res.Response.Status != http.StatusBadRequest {
		t.Fatalf("expected missing_hmac_header/400, got %s/%d", res.Log.Code, res.Response.Status)
	}
}
