package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// defaultGraphQLMaxRetries bounds retries for 429 and upstream 5xx.
const defaultGraphQLMaxRetries = 2

// defaultBackoffMinDelay is the base of the exponential backoff used for
// 502/503/504 responses.
const defaultBackoffMinDelay = 500 * time.Millisecond

// defaultUserAgent identifies this client to the admin API. Caller-supplied
// headers take precedence over it.
const defaultUserAgent = "appauth/1.0 (Go)"

// GraphQLRequest describes one admin GraphQL call.
type GraphQLRequest struct {
	Shop        string
	AccessToken string
	APIVersion  string
	Query       string
	Variables   map[string]any
	Headers     map[string]string

	// MaxRetries bounds additional attempts after the first; 0 means the
	// default of 2. Use a negative value for no retries at all.
	MaxRetries int

	// InvalidTokenResponse, when supplied by the verifier that produced the
	// access token's session, is relayed on a 401 so the embedded client
	// can mint a fresh token and retry the original request.
	InvalidTokenResponse *Response
}

func (r GraphQLRequest) maxRetries() int {
	if r.MaxRetries == 0 {
		return defaultGraphQLMaxRetries
	}
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GraphQLResult is the outcome of a GraphQL call. Data and Extensions are
// left raw for the caller to decode; HTTPLogs holds one entry per attempt.
type GraphQLResult struct {
	Result
	Data       json.RawMessage
	Extensions json.RawMessage
	HTTPLogs   []LogEntry
}

// GraphQLClient executes admin API GraphQL calls with classification-driven
// retries: 429s honor Retry-After, upstream 502/503/504 back off
// exponentially with jitter, everything else is terminal on first sight.
//
// The zero value works; HTTPClient, Sleep, MinDelay and Jitter exist for
// tests.
type GraphQLClient struct {
	HTTPClient Doer
	UserAgent  string
	Sleep      func(time.Duration)
	MinDelay   time.Duration
	Jitter     func() time.Duration
}

func (c GraphQLClient) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (c GraphQLClient) minDelay() time.Duration {
	if c.MinDelay > 0 {
		return c.MinDelay
	}
	return defaultBackoffMinDelay
}

func (c GraphQLClient) jitter() time.Duration {
	if c.Jitter != nil {
		return c.Jitter()
	}
	return time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
}

func (c GraphQLClient) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

// graphQLEndpoint is the versioned admin GraphQL endpoint for a shop.
func graphQLEndpoint(shop, apiVersion string) string {
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", ShopDomain(shop), apiVersion)
}

// Execute runs one GraphQL call, retrying per the classification rules. The
// final Log mirrors the last attempt's entry.
func (c GraphQLClient) Execute(ctx context.Context, gr GraphQLRequest) GraphQLResult {
	if gr.Shop == "" {
		return GraphQLResult{Result: statusFailure(CodeMissingShop, "graphql call requires a shop", http.StatusBadRequest)}
	}
	if gr.AccessToken == "" {
		return GraphQLResult{Result: statusFailure(CodeMissingAccessToken, "graphql call requires an access token", http.StatusBadRequest)}
	}
	if gr.APIVersion == "" {
		return GraphQLResult{Result: statusFailure(CodeMissingAPIVersion, "graphql call requires an api version", http.StatusBadRequest)}
	}
	if gr.Query == "" {
		return GraphQLResult{Result: statusFailure(CodeMissingQuery, "graphql call requires a query", http.StatusBadRequest)}
	}

	payload := map[string]any{"query": gr.Query}
	if gr.Variables != nil {
		payload["variables"] = gr.Variables
	}
	body, _ := json.Marshal(payload)
	endpoint := graphQLEndpoint(gr.Shop, gr.APIVersion)

	doer := defaultDoer(c.HTTPClient)
	maxRetries := gr.maxRetries()
	shop := NormalizeShop(gr.Shop)

	var httpLogs []LogEntry
	terminal := func(entry LogEntry, resp *Response, ok bool) GraphQLResult {
		httpLogs = append(httpLogs, entry)
		return GraphQLResult{
			Result: Result{
				OK:       ok,
				Shop:     shop,
				Log:      LogEntry{Code: entry.Code, Detail: entry.Detail},
				Response: resp,
			},
			HTTPLogs: httpLogs,
		}
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return GraphQLResult{Result: configurationError("graphql request could not be built: " + err.Error()), HTTPLogs: httpLogs}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("X-Shopify-Access-Token", gr.AccessToken)
		for k, v := range gr.Headers {
			req.Header.Set(k, v)
		}

		snapshot := &Request{Method: http.MethodPost, URL: endpoint, Headers: NewHeaders(req.Header), Body: string(body)}

		resp, err := doer.Do(req)
		if err != nil {
			// Transport errors are terminal: unlike a status-coded 5xx, the
			// request may have been half-sent.
			entry := LogEntry{Code: CodeNetworkError, Detail: "graphql request failed: " + err.Error(), Request: snapshot}
			return terminal(entry, &Response{Status: http.StatusInternalServerError, Headers: map[string]string{}}, false)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			entry := LogEntry{Code: CodeNetworkError, Detail: "graphql response could not be read: " + readErr.Error(), Request: snapshot}
			return terminal(entry, &Response{Status: http.StatusInternalServerError, Headers: map[string]string{}}, false)
		}

		upstream := &Response{Status: resp.StatusCode, Body: string(respBody), Headers: flattenHeader(resp.Header)}
		entry := LogEntry{Request: snapshot, Response: upstream}

		switch resp.StatusCode {
		case http.StatusOK:
			var parsed struct {
				Data       json.RawMessage   `json:"data"`
				Errors     []json.RawMessage `json:"errors"`
				Extensions json.RawMessage   `json:"extensions"`
			}
			if err := json.Unmarshal(respBody, &parsed); err != nil {
				entry.Code = CodeNetworkError
				entry.Detail = "graphql response body is not valid JSON"
				return terminal(entry, &Response{Status: http.StatusInternalServerError, Headers: map[string]string{}}, false)
			}
			if len(parsed.Errors) > 0 {
				// Application-level errors, not transport: terminal.
				entry.Code = CodeGraphQLErrors
				entry.Detail = "graphql response carried errors"
				res := terminal(entry, upstream, false)
				res.Data = parsed.Data
				res.Extensions = parsed.Extensions
				return res
			}
			entry.Code = CodeSuccess
			entry.Detail = "graphql call succeeded"
			res := terminal(entry, upstream, true)
			res.Data = parsed.Data
			res.Extensions = parsed.Extensions
			return res

		case http.StatusUnauthorized:
			entry.Code = CodeUnauthorized
			entry.Detail = "access token was rejected by the admin API"
			out := gr.InvalidTokenResponse
			if out == nil {
				out = &Response{Status: http.StatusUnauthorized, Headers: map[string]string{}}
			}
			return terminal(entry, out, false)

		case http.StatusTooManyRequests:
			entry.Code = CodeRateLimited
			entry.Detail = "admin API rate limited the call"
			if attempt < maxRetries {
				httpLogs = append(httpLogs, entry)
				c.sleep(parseRetryAfter(resp.Header.Get("Retry-After")))
				continue
			}
			return terminal(entry, &Response{Status: http.StatusTooManyRequests, Body: upstream.Body, Headers: map[string]string{}}, false)

		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			entry.Code = fmt.Sprintf("http_error_%d", resp.StatusCode)
			entry.Detail = "admin API upstream failure " + http.StatusText(resp.StatusCode)
			if attempt < maxRetries {
				httpLogs = append(httpLogs, entry)
				c.sleep(c.minDelay()*time.Duration(1<<attempt) + c.jitter())
				continue
			}
			return terminal(entry, upstream, false)

		default:
			// 400 malformed query and 403 insufficient scope land here too:
			// terminal, never retried.
			entry.Code = fmt.Sprintf("http_error_%d", resp.StatusCode)
			entry.Detail = "admin API answered " + http.StatusText(resp.StatusCode)
			return terminal(entry, upstream, false)
		}
	}
}
