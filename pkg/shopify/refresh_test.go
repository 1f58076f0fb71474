package shopify

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func refreshableToken() *AccessToken {
	return &AccessToken{
		AccessMode:          AccessModeOnline,
		Shop:                "test-shop",
		Token:               "shpua_old",
		Expires:             testNow.Add(30 * time.Second),
		RefreshToken:        "shprt_def",
		RefreshTokenExpires: testNow.Add(24 * time.Hour),
	}
}

func refresherWith(d Doer) TokenRefresher {
	r := NewTokenRefresher(testCreds())
	r.HTTPClient = d
	r.Now = fixedNow
	return r
}

const refreshOKBody = `{"access_token":"shpua_new","scope":"read_orders","expires_in":3600,` +
	`"refresh_token":"shprt_new","refresh_token_expires_in":2592000}`

func TestRefresh_Success(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(200, refreshOKBody)}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if !res.OK {
		t.Fatalf("expected ok, got %s: %s", res.Log.Code, res.Log.Detail)
	}
	if res.Token == nil || res.Token.Token != "shpua_new" || res.Token.RefreshToken != "shprt_new" {
		t.Fatalf("refreshed token not mapped: %+v", res.Token)
	}
	if res.Token.AccessMode != AccessModeOnline {
		t.Fatalf("access mode must carry over, got %s", res.Token.AccessMode)
	}
}

func TestRefresh_StillValidShortCircuit(t *testing.T) {
	doer := &scriptedDoer{}
	token := refreshableToken()
	token.Expires = testNow.Add(120 * time.Second)

	res := refresherWith(doer).Refresh(context.Background(), token)
	if !res.OK || res.Log.Code != CodeTokenStillValid {
		t.Fatalf("expected token_still_valid, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if res.Token != nil {
		t.Fatal("still-valid short-circuit must not return a new token")
	}
	if doer.calls != 0 {
		t.Fatalf("expected no network call, got %d", doer.calls)
	}
}

func TestRefresh_ExpiringSoonDoesCall(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(200, refreshOKBody)}}
	token := refreshableToken()
	token.Expires = testNow.Add(30 * time.Second)

	res := refresherWith(doer).Refresh(context.Background(), token)
	if !res.OK || doer.calls != 1 {
		t.Fatalf("expected a real refresh call, got ok=%v calls=%d", res.OK, doer.calls)
	}
}

func TestRefresh_ExpiredRefreshToken(t *testing.T) {
	doer := &scriptedDoer{}
	token := refreshableToken()
	token.RefreshTokenExpires = testNow.Add(-time.Minute)

	res := refresherWith(doer).Refresh(context.Background(), token)
	if res.OK || res.Log.Code != CodeRefreshTokenExpired {
		t.Fatalf("expected refresh_token_expired, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Response.Status)
	}
	if doer.calls != 0 {
		t.Fatal("expired refresh token must not hit the network")
	}
}

func TestRefresh_RetriesOn5xx(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(503, ""), respond(502, ""), respond(200, refreshOKBody)}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if !res.OK {
		t.Fatalf("expected ok after 5xx retries, got %s", res.Log.Code)
	}
	if doer.calls != 3 || len(res.HTTPLogs) != 3 {
		t.Fatalf("expected 3 attempts/log entries, got %d/%d", doer.calls, len(res.HTTPLogs))
	}
}

func TestRefresh_5xxExhausted(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(503, ""), respond(503, ""), respond(503, "")}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if res.OK || res.Log.Code != CodeRefreshError {
		t.Fatalf("expected refresh_error after exhausted retries, got ok=%v code=%s", res.OK, res.Log.Code)
	}
	if doer.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", doer.calls)
	}
}

func TestRefresh_GrantClassification(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(400, `{"error":"invalid_grant"}`)}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if res.Log.Code != CodeInvalidGrant || res.Response.Status != http.StatusUnauthorized {
		t.Fatalf("expected invalid_grant/401, got %s/%d", res.Log.Code, res.Response.Status)
	}

	doer = &scriptedDoer{steps: []scriptedStep{respond(401, `{"error":"invalid_client"}`)}}
	res = refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if res.Log.Code != CodeInvalidClient || res.Response.Status != http.StatusInternalServerError {
		t.Fatalf("expected invalid_client/500, got %s/%d", res.Log.Code, res.Response.Status)
	}
}

func TestRefresh_LogsCarryNoBodies(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{respond(200, refreshOKBody)}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	for _, entry := range res.HTTPLogs {
		if entry.Request != nil && entry.Request.Body != "" {
			t.Fatal("refresh request bodies must not be logged")
		}
		if entry.Response != nil && entry.Response.Body != "" {
			t.Fatal("refresh response bodies must not be logged")
		}
	}
}

func TestRefresh_NetworkErrorNotRetried(t *testing.T) {
	doer := &scriptedDoer{steps: []scriptedStep{transportError(), respond(200, refreshOKBody)}}
	res := refresherWith(doer).Refresh(context.Background(), refreshableToken())
	if res.Log.Code != CodeNetworkError || doer.calls != 1 {
		t.Fatalf("expected terminal network_error on first attempt, got %s calls=%d", res.Log.Code, doer.calls)
	}
}
