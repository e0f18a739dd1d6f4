package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud66-oss/ipinfo/utils"
)

func upstream(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func testOptions() HTTPOptions {
	return HTTPOptions{Client: utils.NewHTTPClient(time.Second, false)}
}

func requireProviderError(t *testing.T, err error, reason utils.FailureReason) {
	t.Helper()

	var providerErr *utils.ProviderError
	require.True(t, errors.As(err, &providerErr), "expected a provider error, got %v", err)
	assert.Equal(t, reason, providerErr.Reason)
}

func TestIpifyProvider(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, `{"ip":"9.9.9.9"}`)

	info, err := NewIpifyProvider(testOptions(), server.URL).Lookup(context.Background(), PublicIPQuery(), false)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9.9", info.Address)
	assert.Equal(t, "ipify", info.Source)
}

func TestIPInfoPublicIPProviderText(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, "2001:4860:4860::8888\n")

	info, err := NewIPInfoPublicIPProvider(testOptions(), server.URL).Lookup(context.Background(), PublicIPQuery(), true)
	require.NoError(t, err)
	assert.Equal(t, "2001:4860:4860::8888", info.Address)
	assert.True(t, info.IsFallback)
}

func TestPublicIPRejectsGarbage(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, "<html>rate limited</html>")

	_, err := NewIPInfoPublicIPProvider(testOptions(), server.URL).Lookup(context.Background(), PublicIPQuery(), false)
	requireProviderError(t, err, utils.FailureMalformed)
}

func TestNonSuccessStatus(t *testing.T) {
	server, _ := upstream(t, http.StatusTooManyRequests, "slow down")

	_, err := NewIpifyProvider(testOptions(), server.URL).Lookup(context.Background(), PublicIPQuery(), false)
	requireProviderError(t, err, utils.FailureStatus)
}

func TestEmptyBody(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, "  \n")

	_, err := NewIPInfoCountryCodeProvider(testOptions(), server.URL+"/{address}/country").
		Lookup(context.Background(), CountryCodeQuery("8.8.8.8"), false)
	requireProviderError(t, err, utils.FailureMalformed)
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		fmt.Fprint(w, `{"ip":"9.9.9.9"}`)
	}))
	defer server.Close()

	opts := HTTPOptions{Client: utils.NewHTTPClient(20*time.Millisecond, false)}
	_, err := NewIpifyProvider(opts, server.URL).Lookup(context.Background(), PublicIPQuery(), false)
	requireProviderError(t, err, utils.FailureTimeout)
}

func TestNetworkError(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, "")
	url := server.URL
	server.Close()

	_, err := NewIpifyProvider(testOptions(), url).Lookup(context.Background(), PublicIPQuery(), false)
	requireProviderError(t, err, utils.FailureNetwork)
}

func TestCountryCodeRequestShape(t *testing.T) {
	var path, userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		userAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, "us\n")
	}))
	defer server.Close()

	info, err := NewIpapiCountryCodeProvider(testOptions(), server.URL+"/{address}/country").
		Lookup(context.Background(), CountryCodeQuery("8.8.8.8"), false)
	require.NoError(t, err)

	assert.Equal(t, "/8.8.8.8/country", path)
	assert.Equal(t, utils.DefaultUserAgent, userAgent)
	assert.Equal(t, "US", info.CountryCode)
	assert.Equal(t, "8.8.8.8", info.Address)
}

func TestCountryCodeRejectsUndefined(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, "Undefined")

	_, err := NewIpapiCountryCodeProvider(testOptions(), server.URL+"/{address}/country").
		Lookup(context.Background(), CountryCodeQuery("8.8.8.8"), false)
	requireProviderError(t, err, utils.FailureMalformed)
}

func TestLocalAddressNotApplicable(t *testing.T) {
	server, calls := upstream(t, http.StatusOK, "US")

	_, err := NewIpapiCountryCodeProvider(testOptions(), server.URL+"/{address}/country").
		Lookup(context.Background(), CountryCodeQuery("192.168.1.50"), false)
	assert.ErrorIs(t, err, utils.ErrNotApplicable)
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestWrongKindNotApplicable(t *testing.T) {
	server, calls := upstream(t, http.StatusOK, `{"ip":"9.9.9.9"}`)

	_, err := NewIpifyProvider(testOptions(), server.URL).Lookup(context.Background(), CountryCodeQuery("8.8.8.8"), false)
	assert.ErrorIs(t, err, utils.ErrNotApplicable)
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestDetailsProvider(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, `{
		"ip": "8.8.8.8",
		"city": "Mountain View",
		"region": "California",
		"country": "US",
		"postal": "94035",
		"timezone": "America/Los_Angeles",
		"org": "AS15169 Google LLC"
	}`)

	info, err := NewIPInfoDetailsProvider(testOptions(), server.URL+"/{address}/json").
		Lookup(context.Background(), IPDetailsQuery("8.8.8.8"), false)
	require.NoError(t, err)

	assert.Equal(t, &utils.LookupResult{
		Address:     "8.8.8.8",
		CountryCode: "US",
		Region:      "California",
		City:        "Mountain View",
		Postal:      "94035",
		Timezone:    "America/Los_Angeles",
		Org:         "AS15169 Google LLC",
		Source:      "ipinfo",
	}, info)
}

func TestDetailsProviderReportedError(t *testing.T) {
	server, _ := upstream(t, http.StatusOK, `{"error": true, "reason": "RateLimited"}`)

	_, err := NewIpapiDetailsProvider(testOptions(), server.URL+"/{address}/json").
		Lookup(context.Background(), IPDetailsQuery("8.8.8.8"), false)
	requireProviderError(t, err, utils.FailureMalformed)
}

func TestRestCountriesProvider(t *testing.T) {
	var path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, `{"name":"Germany","alpha2Code":"DE","alpha3Code":"DEU","capital":"Berlin","region":"Europe","population":83240525,"timezones":["UTC+01:00"]}`)
	}))
	defer server.Close()

	info, err := NewRestCountriesProvider(testOptions(), server.URL+"/v2/alpha/{code}").
		Lookup(context.Background(), CountryInfoQuery("DE"), false)
	require.NoError(t, err)

	assert.Equal(t, "/v2/alpha/DE", path)
	require.NotNil(t, info.Country)
	assert.Equal(t, "Germany", info.Country.Name)
	assert.Equal(t, "Berlin", info.Country.Capital)
	assert.Equal(t, int64(83240525), info.Country.Population)
	assert.Equal(t, []string{"UTC+01:00"}, info.Country.Timezones)
}

func TestRestCountriesPlaceholderNotApplicable(t *testing.T) {
	server, calls := upstream(t, http.StatusOK, `{"name":"Nowhere"}`)

	_, err := NewRestCountriesProvider(testOptions(), server.URL+"/{code}").
		Lookup(context.Background(), CountryInfoQuery("XX"), false)
	assert.ErrorIs(t, err, utils.ErrNotApplicable)
	assert.EqualValues(t, 0, atomic.LoadInt32(calls))
}

func TestExpandEndpoint(t *testing.T) {
	assert.Equal(t, "https://ipinfo.io/8.8.8.8/json", expandEndpoint(IPInfoDetailsEndpoint, IPDetailsQuery("8.8.8.8")))
	assert.Equal(t, "https://restcountries.com/v2/alpha/FR", expandEndpoint(RestCountriesEndpoint, CountryInfoQuery("FR")))
	assert.Equal(t, IpifyEndpoint, expandEndpoint(IpifyEndpoint, PublicIPQuery()))
}
