package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/metrics"
	"github.com/cloud66-oss/ipinfo/utils"
)

const maxBodySize = 1 << 20

type decodeFunc func(body []byte, query Query) (*utils.LookupResult, error)

// HTTPOptions are shared by every HTTP based provider.
type HTTPOptions struct {
	Client    *http.Client
	UserAgent string
}

// HTTPProvider performs one GET against a fixed endpoint template for a
// single query kind. {address} and {code} in the endpoint are replaced
// with the query input. It never retries.
type HTTPProvider struct {
	name       string
	kind       QueryKind
	endpoint   string
	client     *http.Client
	userAgent  string
	applicable func(Query) bool
	decode     decodeFunc
}

func newHTTPProvider(name string, kind QueryKind, endpoint string, opts HTTPOptions, decode decodeFunc) *HTTPProvider {
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = utils.DefaultUserAgent
	}

	return &HTTPProvider{
		name:      name,
		kind:      kind,
		endpoint:  endpoint,
		client:    client,
		userAgent: userAgent,
		decode:    decode,
	}
}

func (hp *HTTPProvider) Name() string {
	return hp.name
}

func (hp *HTTPProvider) Kind() QueryKind {
	return hp.kind
}

func (hp *HTTPProvider) Start(ctx context.Context) error {
	log.Info().Str("provider", hp.name).Str("kind", string(hp.kind)).Str("endpoint", hp.endpoint).Msg("starting HTTP provider")
	return nil
}

func (hp *HTTPProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	if query.Kind != hp.kind {
		return nil, utils.ErrNotApplicable
	}
	if hp.applicable != nil && !hp.applicable(query) {
		return nil, utils.ErrNotApplicable
	}

	metrics.ProviderRequestsTotal.WithLabelValues(hp.name, string(hp.kind)).Inc()
	start := time.Now()

	info, err := hp.fetch(ctx, query)
	metrics.ProviderDurationMs.WithLabelValues(hp.name, string(hp.kind)).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		var providerErr *utils.ProviderError
		if errors.As(err, &providerErr) {
			metrics.ProviderFailuresTotal.WithLabelValues(hp.name, string(hp.kind), string(providerErr.Reason)).Inc()
		}
		return nil, err
	}

	info.Source = hp.name
	info.IsFallback = asFallback

	return info, nil
}

func (hp *HTTPProvider) fetch(ctx context.Context, query Query) (*utils.LookupResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, expandEndpoint(hp.endpoint, query), nil)
	if err != nil {
		return nil, hp.failure(utils.FailureNetwork, fmt.Errorf("cannot build a request: %w", err))
	}

	req.Header.Set("User-Agent", hp.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := hp.client.Do(req)
	if err != nil {
		return nil, hp.failure(transportReason(err), fmt.Errorf("cannot send a request: %w", err))
	}

	defer func() {
		io.Copy(io.Discard, resp.Body) // nolint: errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, hp.failure(utils.FailureStatus, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, hp.failure(transportReason(err), fmt.Errorf("cannot read a response: %w", err))
	}

	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return nil, hp.failure(utils.FailureMalformed, errors.New("empty response body"))
	}

	info, err := hp.decode(body, query)
	if err != nil {
		return nil, hp.failure(utils.FailureMalformed, err)
	}

	return info, nil
}

func (hp *HTTPProvider) failure(reason utils.FailureReason, cause error) error {
	return &utils.ProviderError{
		Provider: hp.name,
		Reason:   reason,
		Cause:    cause,
	}
}

func (hp *HTTPProvider) Shutdown(ctx context.Context) {
	hp.client.CloseIdleConnections()
}

func (hp *HTTPProvider) Refresh(ctx context.Context) error {
	return nil
}

func expandEndpoint(endpoint string, query Query) string {
	return strings.NewReplacer(
		"{address}", url.PathEscape(query.Address),
		"{code}", url.PathEscape(query.CountryCode),
	).Replace(endpoint)
}

func transportReason(err error) utils.FailureReason {
	if errors.Is(err, context.DeadlineExceeded) {
		return utils.FailureTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return utils.FailureTimeout
	}

	return utils.FailureNetwork
}

// publicAddressOnly skips lookups for addresses no upstream can locate.
func publicAddressOnly(query Query) bool {
	return !utils.IsLocal(query.Address)
}
