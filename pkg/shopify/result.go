package shopify

import "net/http"

// Result codes. Three disjoint classes:
//   - configuration errors (HTTP 500): bugs in the embedding app, never
//     attacker-influenced;
//   - verification failures (400/401/405): untrusted input rejected, the
//     prebuilt response is relayed verbatim;
//   - upstream failures (429/5xx/network): retried internally where the
//     component says so, then surfaced as a terminal result.
const (
	CodeConfigurationError = "configuration_error"

	CodeVerified           = "verified"
	CodePostMethodExpected = "post_method_expected"
	CodeMissingHMACHeader  = "missing_hmac_header"
	CodeInvalidHMAC        = "invalid_hmac"

	CodeMissingSignature = "missing_signature"
	CodeInvalidSignature = "invalid_signature"
	CodeMissingTimestamp = "missing_timestamp"
	CodeInvalidTimestamp = "invalid_timestamp"
	CodeTimestampTooOld  = "timestamp_too_old"

	CodeMissingAuthorizationHeader = "missing_authorization_header"
	CodeInvalidIDToken             = "invalid_id_token"
	CodeExpiredIDToken             = "expired_id_token"
	CodeInvalidAud                 = "invalid_aud"
	CodeOptionsRequest             = "options_request"
	CodeRedirectToPatchPage        = "redirect_to_patch_id_token_page"

	CodeSuccess           = "success"
	CodeGraphQLErrors     = "graphql_errors"
	CodeUnauthorized      = "unauthorized"
	CodeRateLimited       = "rate_limited"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeNetworkError      = "network_error"

	CodeMissingShop        = "missing_shop"
	CodeMissingAccessToken = "missing_access_token"
	CodeMissingAPIVersion  = "missing_api_version"
	CodeMissingQuery       = "missing_query"

	CodeInvalidSubjectToken = "invalid_subject_token"
	CodeInvalidGrant        = "invalid_grant"
	CodeInvalidClient       = "invalid_client"
	CodeExchangeError       = "exchange_error"
	CodeRefreshError        = "refresh_error"
	CodeRefreshTokenExpired = "refresh_token_expired"
	CodeTokenStillValid     = "token_still_valid"
)

// RetryRequestHeader is set on 401 responses for embedded surfaces whose
// client (app-bridge) knows to mint a fresh ID token and retry the request.
const RetryRequestHeader = "X-Shopify-Retry-Invalid-Session-Request"

// LogEntry describes the outcome of one operation or one HTTP attempt.
// Request/Response snapshots are included where the component allows it
// (the refresh engine strips bodies, token material).
type LogEntry struct {
	Code     string
	Detail   string
	Request  *Request
	Response *Response
}

// Result is the common spine of every verification outcome.
// When OK is false, Response is fully populated and may be relayed verbatim
// to the original client; when OK is true, the surface-specific fields of
// the embedding result are populated per that surface's contract.
type Result struct {
	OK       bool
	Shop     string
	Log      LogEntry
	Response *Response
}

func failure(code, detail string, resp *Response) Result {
	return Result{
		OK:       false,
		Log:      LogEntry{Code: code, Detail: detail},
		Response: resp,
	}
}

func statusFailure(code, detail string, status int) Result {
	return failure(code, detail, &Response{Status: status, Headers: map[string]string{}})
}

func configurationError(detail string) Result {
	return statusFailure(CodeConfigurationError, detail, http.StatusInternalServerError)
}
