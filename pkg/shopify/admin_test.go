package shopify

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func adminVerifier() AdminVerifier {
	v := NewAdminVerifier(testCreds())
	v.Now = fixedNow
	return v
}

func documentRequest(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL, Headers: Headers{}}
}

func fetchRequest(token string) Request {
	h := Headers{}
	h.Set("authorization", "Bearer "+token)
	return Request{Method: http.MethodGet, URL: "/v1/api/shop", Headers: h}
}

func TestAdminVerify_DocumentSuccess(t *testing.T) {
	token := mintIDToken(t, "test-secret", nil)
	res := adminVerifier().Verify(documentRequest("/v1/api/home?embedded=1&id_token=" + token))
	if !res.OK {
		t.Fatalf("expected ok, got %s: %s", res.Log.Code, res.Log.Detail)
	}
	csp := res.Response.Headers["Content-Security-Policy"]
	if !strings.Contains(csp, "frame-ancestors") || !strings.Contains(csp, "test-shop.myshopify.com") {
		t.Fatalf("expected iframe CSP header, got %q", csp)
	}
	if link := res.Response.Headers["Link"]; !strings.Contains(link, "rel=\"preload\"") {
		t.Fatalf("expected preload Link header, got %q", link)
	}
	// Document-mode retry response is a redirect, not a 401.
	if res.NewIDTokenResponse == nil || res.NewIDTokenResponse.Status != http.StatusFound {
		t.Fatalf("expected redirect-shaped retry response, got %+v", res.NewIDTokenResponse)
	}
}

func TestAdminVerify_FetchSuccess(t *testing.T) {
	token := mintIDToken(t, "test-secret", nil)
	res := adminVerifier().Verify(fetchRequest(token))
	if !res.OK {
		t.Fatalf("expected ok, got %s", res.Log.Code)
	}
	if res.Response.Headers["Content-Security-Policy"] != "" {
		t.Fatal("fetch responses must not carry iframe headers")
	}
	if res.NewIDTokenResponse == nil ||
		res.NewIDTokenResponse.Status != http.StatusUnauthorized ||
		res.NewIDTokenResponse.Headers[RetryRequestHeader] != "1" {
		t.Fatalf("expected 401 retry response for fetch mode, got %+v", res.NewIDTokenResponse)
	}
}

func TestAdminVerify_DocumentMissingTokenRedirects(t *testing.T) {
	res := adminVerifier().Verify(documentRequest("/v1/api/home?embedded=1&shop=test-shop.myshopify.com"))
	if res.OK || res.Log.Code != CodeRedirectToPatchPage {
		t.Fatalf("expected redirect_to_patch_id_token_page, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if res.Response.Status != http.StatusFound {
		t.Fatalf("expected 302, got %d", res.Response.Status)
	}

	loc, err := url.Parse(res.Response.Headers["Location"])
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Path != DefaultPatchPath {
		t.Fatalf("expected redirect to %s, got %s", DefaultPatchPath, loc.Path)
	}
	q := loc.Query()
	if q.Get("embedded") != "1" || q.Get("shop") != "test-shop.myshopify.com" {
		t.Fatalf("expected original params preserved, got %q", loc.RawQuery)
	}

	reload, err := url.Parse(q.Get("shopify-reload"))
	if err != nil {
		t.Fatalf("parse shopify-reload: %v", err)
	}
	if reload.Path != "/v1/api/home" {
		t.Fatalf("expected reload to original path, got %s", reload.Path)
	}
	if reload.Query().Get("id_token") != "" {
		t.Fatal("id_token must be stripped from the reload target")
	}
}

func TestAdminVerify_DocumentBadTokenRedirects(t *testing.T) {
	forged := mintIDToken(t, "wrong-secret", nil)
	res := adminVerifier().Verify(documentRequest("/v1/api/home?id_token=" + forged))
	if res.Log.Code != CodeRedirectToPatchPage || res.Response.Status != http.StatusFound {
		t.Fatalf("expected redirect on bad document token, got %s/%d", res.Log.Code, res.Response.Status)
	}
	loc, _ := url.Parse(res.Response.Headers["Location"])
	if loc.Query().Get("id_token") != "" {
		t.Fatal("bad id_token must not be carried to the patch page")
	}
}

func TestAdminVerify_FetchBadTokenGets401(t *testing.T) {
	forged := mintIDToken(t, "wrong-secret", nil)
	res := adminVerifier().Verify(fetchRequest(forged))
	if res.OK || res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for fetch mode, got ok=%v status=%d", res.OK, res.Response.Status)
	}
	if res.Response.Headers[RetryRequestHeader] != "1" {
		t.Fatal("fetch failure must carry the retry header")
	}
	if res.Log.Code != CodeInvalidIDToken {
		t.Fatalf("expected invalid_id_token, got %s", res.Log.Code)
	}
}

func TestAdminVerify_CustomPatchPath(t *testing.T) {
	v := adminVerifier()
	v.PatchPath = "/session/patch"
	res := v.Verify(documentRequest("/v1/api/home"))
	loc, _ := url.Parse(res.Response.Headers["Location"])
	if loc.Path != "/session/patch" {
		t.Fatalf("expected configured patch path, got %s", loc.Path)
	}
}
