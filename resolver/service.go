package resolver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/cache"
	"github.com/cloud66-oss/ipinfo/provider"
	"github.com/cloud66-oss/ipinfo/utils"
)

const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-IP"
)

// RequestMetadata is what the service needs to know about an inbound
// request.
type RequestMetadata struct {
	Headers      http.Header
	ReverseProxy bool
	PeerAddress  string
}

func MetadataFromRequest(req *http.Request) RequestMetadata {
	return RequestMetadata{
		Headers:      req.Header,
		ReverseProxy: req.URL.Query().Get("reverseProxy") == "true",
		PeerAddress:  utils.StripPort(req.RemoteAddr),
	}
}

// Caches holds one namespace per query kind.
type Caches struct {
	PublicIP    *cache.Namespace[string]
	CountryCode *cache.Namespace[*utils.LookupResult]
	CountryInfo *cache.Namespace[*utils.LookupResult]
	IPDetails   *cache.Namespace[*utils.LookupResult]
}

// NewCaches builds the namespaces over one backend. A nil backend gives
// namespaces that always miss.
func NewCaches(backend cache.CacheProvider, ttls map[provider.QueryKind]time.Duration) *Caches {
	return &Caches{
		PublicIP:    cache.NewNamespace[string](string(provider.PublicIP), ttls[provider.PublicIP], backend),
		CountryCode: cache.NewNamespace[*utils.LookupResult](string(provider.CountryCode), ttls[provider.CountryCode], backend),
		CountryInfo: cache.NewNamespace[*utils.LookupResult](string(provider.CountryInfo), ttls[provider.CountryInfo], backend),
		IPDetails:   cache.NewNamespace[*utils.LookupResult](string(provider.IPDetails), ttls[provider.IPDetails], backend),
	}
}

// Details is the /mydetails payload. Fields nothing was found for are null.
type Details struct {
	IP       *string `json:"ip"`
	City     *string `json:"city"`
	Region   *string `json:"region"`
	Country  *string `json:"country"`
	Postal   *string `json:"postal"`
	Timezone *string `json:"timezone"`
	Org      *string `json:"org"`
}

// Resolution is the client address enriched with its country.
type Resolution struct {
	IP          *string            `json:"ip"`
	CountryCode *string            `json:"countryCode"`
	CountryInfo *utils.CountryInfo `json:"countryInfo"`
}

type Service struct {
	resolver provider.Resolver
	caches   *Caches
}

func NewService(resolver provider.Resolver, caches *Caches) *Service {
	if caches == nil {
		caches = NewCaches(nil, nil)
	}

	return &Service{
		resolver: resolver,
		caches:   caches,
	}
}

// ResolveClientIP trusts X-Forwarded-For, then X-Real-IP, then the peer
// address. A local peer address is replaced by this host's discovered
// public address when discovery succeeds.
func (s *Service) ResolveClientIP(ctx context.Context, meta RequestMetadata) string {
	// repeated header lines are one comma separated list
	if forwarded := strings.Join(meta.Headers.Values(headerForwardedFor), ","); strings.TrimSpace(forwarded) != "" {
		hops := strings.Split(forwarded, ",")
		hop := hops[0]
		if meta.ReverseProxy {
			hop = hops[len(hops)-1]
		}
		return strings.TrimSpace(hop)
	}

	if realIP := meta.Headers.Get(headerRealIP); realIP != "" {
		return realIP
	}

	if !utils.IsLocal(meta.PeerAddress) {
		return meta.PeerAddress
	}

	if address := s.discoverPublicIP(ctx); address != "" {
		return address
	}

	log.Debug().Str("peer", meta.PeerAddress).Msg("public address discovery failed, using peer address")
	return meta.PeerAddress
}

func (s *Service) discoverPublicIP(ctx context.Context) string {
	query := provider.PublicIPQuery()

	if address, ok := s.caches.PublicIP.Get(ctx, query.Key()); ok && address != "" {
		return address
	}

	info, err := s.resolver.Resolve(ctx, query)
	if err != nil || info == nil || info.Address == "" {
		return ""
	}

	s.caches.PublicIP.Set(ctx, query.Key(), info.Address)
	return info.Address
}

// ResolveCountryCode returns the two letter country code of the address or
// an empty string.
func (s *Service) ResolveCountryCode(ctx context.Context, address string) string {
	info, _ := s.lookup(ctx, s.caches.CountryCode, provider.CountryCodeQuery(address))
	if info == nil {
		return ""
	}
	return info.CountryCode
}

// ResolveCountryInfo returns nil, nil when the code is well formed but
// nothing is known about it.
func (s *Service) ResolveCountryInfo(ctx context.Context, code string) (*utils.CountryInfo, error) {
	info, err := s.lookup(ctx, s.caches.CountryInfo, provider.CountryInfoQuery(strings.ToUpper(code)))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return info.Country, nil
}

func (s *Service) ResolveDetails(ctx context.Context, address string) *Details {
	details := &Details{IP: optional(address)}

	info, _ := s.lookup(ctx, s.caches.IPDetails, provider.IPDetailsQuery(address))
	if info == nil {
		return details
	}

	details.City = optional(info.City)
	details.Region = optional(info.Region)
	details.Country = optional(info.CountryCode)
	details.Postal = optional(info.Postal)
	details.Timezone = optional(info.Timezone)
	details.Org = optional(info.Org)

	return details
}

// ResolveWithCountry never fails. Stages after the first one that finds
// nothing are left null.
func (s *Service) ResolveWithCountry(ctx context.Context, meta RequestMetadata) *Resolution {
	address := s.ResolveClientIP(ctx, meta)
	resolution := &Resolution{IP: optional(address)}

	code := s.ResolveCountryCode(ctx, address)
	if code == "" {
		return resolution
	}
	resolution.CountryCode = &code

	country, err := s.ResolveCountryInfo(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("unusable country code")
		return resolution
	}
	resolution.CountryInfo = country

	return resolution
}

func (s *Service) lookup(ctx context.Context, ns *cache.Namespace[*utils.LookupResult], query provider.Query) (*utils.LookupResult, error) {
	key := query.Key()

	if info, ok := ns.Get(ctx, key); ok && info != nil {
		log.Trace().Str("namespace", ns.Name()).Str("key", key).Msg("returning cached value")
		return info, nil
	}

	info, err := s.resolver.Resolve(ctx, query)
	if err != nil || info == nil {
		return nil, err
	}

	ns.Set(ctx, key, info)
	return info, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
