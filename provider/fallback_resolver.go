package provider

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/metrics"
	"github.com/cloud66-oss/ipinfo/utils"
)

// Resolver answers a query or reports that nothing could be found
// (nil, nil). The only error it returns is *utils.CountryCodeError.
type Resolver interface {
	Resolve(ctx context.Context, query Query) (*utils.LookupResult, error)
}

// FallbackResolver routes each query kind to its strategy, a
// CascadeIPProvider or a RaceIPProvider, and swallows upstream failures.
type FallbackResolver struct {
	strategies map[QueryKind]IPProvider
}

func NewFallbackResolver() *FallbackResolver {
	return &FallbackResolver{
		strategies: make(map[QueryKind]IPProvider),
	}
}

func (fr *FallbackResolver) Register(kind QueryKind, strategy IPProvider) {
	fr.strategies[kind] = strategy
}

func (fr *FallbackResolver) Strategies() []IPProvider {
	strategies := make([]IPProvider, 0, len(fr.strategies))
	for _, strategy := range fr.strategies {
		strategies = append(strategies, strategy)
	}
	return strategies
}

func (fr *FallbackResolver) Resolve(ctx context.Context, query Query) (*utils.LookupResult, error) {
	if query.Kind == CountryInfo {
		if utf8.RuneCountInString(query.CountryCode) != 2 {
			return nil, &utils.CountryCodeError{Code: query.CountryCode}
		}
		query.CountryCode = strings.ToUpper(query.CountryCode)
	}

	strategy, ok := fr.strategies[query.Kind]
	if !ok {
		log.Debug().Str("kind", string(query.Kind)).Msg("no providers configured")
		return nil, nil
	}

	info, err := strategy.Lookup(ctx, query, false)
	if err != nil {
		log.Warn().Err(err).Str("kind", string(query.Kind)).Str("key", query.Key()).Msg("lookup failed")
		info = nil
	}

	if info == nil {
		metrics.NoResultTotal.WithLabelValues(string(query.Kind)).Inc()
		log.Debug().Str("kind", string(query.Kind)).Str("key", query.Key()).Msg("no result")
	}

	return info, nil
}
