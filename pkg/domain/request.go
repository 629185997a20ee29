package domain

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// RequestDescriptor is a transport-agnostic description of one outbound HTTP
// call. Authenticators mutate it in place; the orchestrator clones it before
// each attempt so the caller's original intent survives a retry.
type RequestDescriptor struct {
	Method  string
	URL     string
	Headers http.Header
	Query   url.Values

	// Body is nil, a raw string, []byte, url.Values (form-encoded) or any
	// JSON-marshalable value.
	Body any

	// Auth carries a basic-auth pair when the scheme provides one. The
	// digest recovery branch reuses it to answer a challenge.
	Auth *BasicAuthPair

	Timeout         time.Duration
	FollowRedirects bool
	SkipTLSVerify   bool
}

type BasicAuthPair struct {
	Username string
	Password string
}

// Clone deep-copies headers and query so per-attempt mutation never leaks
// back into the original descriptor. Body is shared; attempts must not
// mutate it.
func (r *RequestDescriptor) Clone() *RequestDescriptor {
	out := *r
	if r.Headers != nil {
		out.Headers = r.Headers.Clone()
	}
	if r.Query != nil {
		out.Query = make(url.Values, len(r.Query))
		for k, vs := range r.Query {
			out.Query[k] = append([]string(nil), vs...)
		}
	}
	if r.Auth != nil {
		auth := *r.Auth
		out.Auth = &auth
	}
	return &out
}

// SetHeader initializes the header map on first use.
func (r *RequestDescriptor) SetHeader(key, value string) {
	if r.Headers == nil {
		r.Headers = http.Header{}
	}
	r.Headers.Set(key, value)
}

// SetQuery initializes the query map on first use.
func (r *RequestDescriptor) SetQuery(key, value string) {
	if r.Query == nil {
		r.Query = url.Values{}
	}
	r.Query.Set(key, value)
}

// Response is the transport primitive's result for one attempt.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport performs exactly one HTTP exchange per call. Network-level
// failures are returned as errors and are never retried by the pipeline.
type Transport interface {
	Send(ctx context.Context, req *RequestDescriptor) (*Response, error)
}
