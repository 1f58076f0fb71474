package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// proxyTimestampWindow is how far a proxy request's timestamp may drift from
// the current time in either direction.
const proxyTimestampWindow = 90 * time.Second

// ProxyResult is the outcome of app-proxy verification. LoggedInCustomerID
// identifies a storefront customer, a different identity class from merchant
// user IDs; never treat one as the other.
type ProxyResult struct {
	Result
	LoggedInCustomerID string
}

// ProxyVerifier authenticates storefront app-proxy requests, which are
// signed with a hex HMAC-SHA256 over the canonicalized query string instead
// of the body.
//
// Canonical form: parse the query preserving duplicate keys, drop
// `signature`, sort the remaining keys bytewise, then concatenate
// `key=value` pairs with no separator; multi-valued keys are joined with
// commas. This is the app-proxy scheme — not the `&`-joined OAuth callback
// variant.
type ProxyVerifier struct {
	Credentials Credentials

	// Now is the clock used for the timestamp window; nil means time.Now.
	Now func() time.Time
}

// NewProxyVerifier returns a verifier over creds with the real clock.
func NewProxyVerifier(creds Credentials) ProxyVerifier {
	return ProxyVerifier{Credentials: creds}
}

func (v ProxyVerifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify checks the request's query signature and timestamp. On success the
// result carries the shop label and, when present, the logged-in customer id.
func (v ProxyVerifier) Verify(req Request) ProxyResult {
	if v.Credentials.ClientSecret == "" {
		return ProxyResult{Result: configurationError("client secret is not configured")}
	}

	params, err := url.ParseQuery(req.query())
	if err != nil {
		return ProxyResult{Result: configurationError("proxy request query string could not be parsed")}
	}

	received := params.Get("signature")
	if received == "" {
		return ProxyResult{Result: statusFailure(CodeMissingSignature,
			"no signature parameter on proxy request", http.StatusUnauthorized)}
	}

	canonical := canonicalizeProxyQuery(params)
	if !verifyProxySignature(canonical, received, v.Credentials) {
		return ProxyResult{Result: statusFailure(CodeInvalidSignature,
			"proxy signature did not match query parameters", http.StatusUnauthorized)}
	}

	ts := params.Get("timestamp")
	if ts == "" {
		return ProxyResult{Result: statusFailure(CodeMissingTimestamp,
			"no timestamp parameter on proxy request", http.StatusUnauthorized)}
	}
	seconds, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ProxyResult{Result: statusFailure(CodeInvalidTimestamp,
			"proxy timestamp is not numeric", http.StatusUnauthorized)}
	}
	drift := v.now().Sub(time.Unix(seconds, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > proxyTimestampWindow {
		return ProxyResult{Result: statusFailure(CodeTimestampTooOld,
			"proxy timestamp is outside the accepted window", http.StatusUnauthorized)}
	}

	shop := NormalizeShop(params.Get("shop"))
	return ProxyResult{
		Result: Result{
			OK:       true,
			Shop:     shop,
			Log:      LogEntry{Code: CodeVerified, Detail: "proxy request verified for shop " + shop},
			Response: &Response{Status: http.StatusOK, Headers: map[string]string{}},
		},
		LoggedInCustomerID: params.Get("logged_in_customer_id"),
	}
}

// canonicalizeProxyQuery builds the exact string the platform signs:
// signature removed, keys sorted bytewise, `key=value` pairs concatenated
// with no separator, repeated keys comma-joined.
func canonicalizeProxyQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.Join(params[k], ","))
	}
	return b.String()
}

func verifyProxySignature(canonical, received string, creds Credentials) bool {
	for _, secret := range creds.secrets() {
		mac := hmac.New(sha256.New, []byte(secret))
		_, _ = mac.Write([]byte(canonical))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(received)) {
			return true
		}
	}
	return false
}
