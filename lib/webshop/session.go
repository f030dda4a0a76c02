// Package webshop wraps a cookie-bearing http client bound to a single
// storefront host. Checkout flows learn headers and hostnames as they
// go, so the session exposes header merging and lets fully qualified
// urls bypass base host resolution.
package webshop

import (
	"context"
	"net/http/cookiejar"
	"pickupbot/lib/telemetry"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.14; rv:108.0) Gecko/20100101 Firefox/116.0"

type Session struct {
	host string
	http *resty.Client
}

func NewSession(host string, headers map[string]string) (*Session, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetTimeout(time.Second * 5)
	client.SetHeader("user-agent", defaultUserAgent)
	for k, v := range headers {
		client.SetHeader(k, v)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	telemetry.InstrumentResty(client, "webshop/http")

	return &Session{host: host, http: client}, nil
}

// MergeHeaders installs headers learned mid-flow (for instance from an
// embedded page metadata document) into every subsequent request.
func (s *Session) MergeHeaders(h map[string]string) {
	for k, v := range h {
		s.http.SetHeader(k, v)
	}
}

// Host returns the base host the session was bound to.
func (s *Session) Host() string {
	return s.host
}

func (s *Session) resolve(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return s.host + path
}

func (s *Session) Get(ctx context.Context, path string, query map[string]string) (*resty.Response, error) {
	url := s.resolve(path)
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(url)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return res, nil
}

func (s *Session) PostForm(ctx context.Context, path string, query, form map[string]string) (*resty.Response, error) {
	url := s.resolve(path)
	res, err := s.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetHeader("X-Requested-With", "Fetch").
		SetFormData(form).
		Post(url)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	return res, nil
}

// EnsureStatus asserts the transport status code of a response.
func EnsureStatus(res *resty.Response, code int) error {
	if res.StatusCode() != code {
		return &ProtocolError{
			URL:    res.Request.URL,
			Status: res.StatusCode(),
			Reason: "unexpected http status",
		}
	}
	return nil
}
