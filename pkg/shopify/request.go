package shopify

import (
	"io"
	"net/http"
	"strings"
)

// Headers is a case-insensitive header map. Keys are stored lower-cased;
// use NewHeaders (or FromHTTPRequest) to build one so lookups stay correct.
type Headers map[string][]string

// NewHeaders copies in, folding every key to lower case. Values for keys
// that collide after folding are appended in iteration order.
func NewHeaders(in map[string][]string) Headers {
	h := make(Headers, len(in))
	for k, vs := range in {
		lk := strings.ToLower(k)
		h[lk] = append(h[lk], vs...)
	}
	return h
}

// Get returns the first value for name, or "" when absent.
func (h Headers) Get(name string) string {
	vs := h[strings.ToLower(name)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Has reports whether name is present with a non-empty first value.
func (h Headers) Has(name string) bool {
	return h.Get(name) != ""
}

// Set replaces the values for name.
func (h Headers) Set(name, value string) {
	h[strings.ToLower(name)] = []string{value}
}

// Request is the caller-owned snapshot of an inbound HTTP request. It is
// passed by value into every verifier; nothing in this package mutates it.
type Request struct {
	Method  string
	Headers Headers
	URL     string
	Body    string
}

// FromHTTPRequest snapshots a net/http request into a Request. The body is
// read fully and replaced on r so downstream handlers can still read it.
func FromHTTPRequest(r *http.Request) (Request, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return Request{}, err
		}
		body = b
		r.Body = io.NopCloser(strings.NewReader(string(b)))
	}

	u := r.URL.RequestURI()
	return Request{
		Method:  r.Method,
		Headers: NewHeaders(r.Header),
		URL:     u,
		Body:    string(body),
	}, nil
}

// query returns the raw query string portion of the request URL.
func (r Request) query() string {
	if i := strings.IndexByte(r.URL, '?'); i >= 0 {
		return r.URL[i+1:]
	}
	return ""
}

// path returns the request URL without its query string.
func (r Request) path() string {
	if i := strings.IndexByte(r.URL, '?'); i >= 0 {
		return r.URL[:i]
	}
	return r.URL
}

// Response is a prebuilt HTTP response. Whenever a verification or token
// operation fails, the result carries one of these, safe to relay verbatim
// to the original client.
type Response struct {
	Status  int
	Body    string
	Headers map[string]string
}

// Write relays the response onto a net/http ResponseWriter.
func (r *Response) Write(w http.ResponseWriter) {
	for k, v := range r.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(r.Status)
	if r.Body != "" {
		_, _ = io.WriteString(w, r.Body)
	}
}
