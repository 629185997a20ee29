package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yksirotta/credflow/pkg/domain"
)

// HTTPTransport is the default transport primitive: one descriptor in, one
// response out. It owns no retry or authentication logic.
type HTTPTransport struct {
	// DefaultTimeout applies when a descriptor carries no timeout of its own.
	DefaultTimeout time.Duration
}

func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{}
}

func (t *HTTPTransport) Send(ctx context.Context, req *domain.RequestDescriptor) (*domain.Response, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, values := range req.Headers {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if contentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	if len(req.Query) > 0 {
		query := httpReq.URL.Query()
		for key, values := range req.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		httpReq.URL.RawQuery = query.Encode()
	}

	// An explicit Authorization header (digest response, OAuth) wins over
	// the basic-auth pair.
	if req.Auth != nil && httpReq.Header.Get("Authorization") == "" {
		httpReq.SetBasicAuth(req.Auth.Username, req.Auth.Password)
	}

	client := t.client(req)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &domain.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       responseBody,
	}, nil
}

func (t *HTTPTransport) client(req *domain.RequestDescriptor) *http.Client {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = t.DefaultTimeout
	}

	client := &http.Client{
		Timeout: timeout,
	}

	if !req.FollowRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if req.SkipTLSVerify {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return client
}

func encodeBody(body any) (io.Reader, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case string:
		return strings.NewReader(v), "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case url.Values:
		return strings.NewReader(v.Encode()), "application/x-www-form-urlencoded", nil
	case io.Reader:
		return v, "", nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		return bytes.NewReader(encoded), "application/json", nil
	}
}
