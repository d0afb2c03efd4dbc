package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"

	"github.com/Comcast/darkroom/dmerror"
	"github.com/Comcast/darkroom/frame"
)

// HTTPAdapter dispatches Frames over HTTP, carrying a cookie jar across
// the lifetime of one Reel Player run so that a Frame which logs in once
// can rely on the session cookie in later Frames, and a CircuitBreaker
// shared across every dispatch in that run.
type HTTPAdapter struct {
	Client  *http.Client
	Jar     *cookiejar.Jar
	Breaker *CircuitBreaker
}

// NewHTTPAdapter builds an adapter with a public-suffix-aware cookie jar
// and a fresh circuit breaker.
func NewHTTPAdapter() (*HTTPAdapter, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindTransport, "constructing cookie jar", err)
	}
	return &HTTPAdapter{
		Client:  &http.Client{Jar: jar},
		Jar:     jar,
		Breaker: NewCircuitBreaker(5, 0),
	}, nil
}

// Send implements Adapter for HTTP Frames.
func (a *HTTPAdapter) Send(ctx context.Context, protocol frame.Protocol, req *Request, fallback Fallback) (*Response, error) {
	if protocol != frame.HTTP {
		return nil, dmerror.New(dmerror.KindTransport, fmt.Sprintf("HTTPAdapter cannot dispatch protocol %q", protocol))
	}
	if !a.Breaker.Allow() {
		return nil, dmerror.New(dmerror.KindTransport, "circuit breaker open: too many recent transport failures")
	}

	httpReq, err := a.build(ctx, req, fallback)
	if err != nil {
		a.Breaker.Failure()
		return nil, err
	}

	resp, err := a.Client.Do(httpReq)
	if err != nil {
		a.Breaker.Failure()
		return nil, dmerror.Wrap(dmerror.KindTransport, "dispatching HTTP request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		a.Breaker.Failure()
		return nil, dmerror.Wrap(dmerror.KindTransport, "reading HTTP response body", err)
	}

	body, err := decodeJSONBody(raw)
	if err != nil {
		a.Breaker.Failure()
		return nil, err
	}

	a.Breaker.Success()
	return &Response{Status: resp.StatusCode, Body: body, Header: resp.Header}, nil
}

func (a *HTTPAdapter) build(ctx context.Context, req *Request, fallback Fallback) (*http.Request, error) {
	method, rest, err := splitMethod(req.URI)
	if err != nil {
		return nil, err
	}

	uri := rest
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		base := req.Entrypoint
		if base == "" {
			base = fallback.BaseURL
		}
		if base != "" {
			uri = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(uri, "/")
		}
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindTransport, fmt.Sprintf("parsing request URI %q", uri), err)
	}

	if len(req.Query) > 0 {
		q := parsed.Query()
		for k, v := range req.Query {
			q.Set(k, fmt.Sprintf("%v", v))
		}
		parsed.RawQuery = q.Encode()
	}

	var bodyReader io.Reader
	if req.Body != nil {
		raw, err := json.Marshal(req.Body)
		if err != nil {
			return nil, dmerror.Wrap(dmerror.KindTransport, "encoding request body", err)
		}
		bodyReader = bytes.NewReader(raw)
	}
	if len(req.Form) > 0 {
		values := url.Values{}
		for k, v := range req.Form {
			values.Set(k, fmt.Sprintf("%v", v))
		}
		bodyReader = strings.NewReader(values.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, parsed.String(), bodyReader)
	if err != nil {
		return nil, dmerror.Wrap(dmerror.KindTransport, "constructing HTTP request", err)
	}

	for k, v := range req.Header {
		httpReq.Header.Set(k, fmt.Sprintf("%v", v))
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if len(req.Form) > 0 {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return httpReq, nil
}

// splitMethod splits uri's leading whitespace-delimited method token from
// its remainder (path or absolute URL), per spec.md §3/§4.9.
func splitMethod(uri string) (method, rest string, err error) {
	trimmed := strings.TrimSpace(uri)
	idx := strings.IndexFunc(trimmed, unicode.IsSpace)
	if idx < 0 {
		return "", "", dmerror.New(dmerror.KindTransport, fmt.Sprintf("request URI %q has no method token", uri))
	}
	method = strings.ToUpper(trimmed[:idx])
	rest = strings.TrimSpace(trimmed[idx:])
	if rest == "" {
		return "", "", dmerror.New(dmerror.KindTransport, fmt.Sprintf("request URI %q has no path after method", uri))
	}
	return method, rest, nil
}
