package jwtauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DiscoveryEndpoint is the OpenID Connect discovery path appended to issuer URL.
const DiscoveryEndpoint = "/.well-known/openid-configuration"

type httpClientCtxKey struct{}

// HTTPClientCtxKey is Context key which is used to fetch custom HTTP.Client.
// Used to pass special HTTP client (e.g with non-default timeout) or for tests.
var HTTPClientCtxKey = httpClientCtxKey{}

// doRequest performs HTTP request using our default client or client given by context like this:
//
//	context.WithValue(ctx, jwtauth.HTTPClientCtxKey, client)
func doRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	// Don't share http.DefaultTransport, we don't want to depend on its global state.
	client := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
	if c, ok := ctx.Value(HTTPClientCtxKey).(*http.Client); ok {
		client = c
	}
	return client.Do(req.WithContext(ctx))
}

// getJSON fetches url and decodes JSON body into v. Body is limited to 1MB.
func getJSON(ctx context.Context, url string, v interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "can't create request")
	}

	resp, err := doRequest(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s failed: %s %s", url, resp.Status, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrapf(err, "decode response %s", body)
	}
	return nil
}

// DiscoveryJSON holds the discovery document fields used to locate verification keys.
type DiscoveryJSON struct {
	Issuer  string `json:"issuer"`
	JWKSURL string `json:"jwks_uri"`
}

// Discover uses the OpenID Connect discovery mechanism to find JWKS URL of given issuer.
func Discover(ctx context.Context, issuer string) (DiscoveryJSON, error) {
	wellKnown := strings.TrimSuffix(issuer, "/") + DiscoveryEndpoint

	var d DiscoveryJSON
	if err := getJSON(ctx, wellKnown, &d); err != nil {
		return DiscoveryJSON{}, errors.Wrap(err, "jwtauth: failed to fetch provider discovery object")
	}
	if d.Issuer != issuer {
		return DiscoveryJSON{}, fmt.Errorf("jwtauth: issuer did not match the issuer returned by provider, expected %q got %q", issuer, d.Issuer)
	}
	if d.JWKSURL == "" {
		return DiscoveryJSON{}, fmt.Errorf("jwtauth: provider %q does not advertise jwks_uri", issuer)
	}
	return d, nil
}
