package provider

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cloud66-oss/ipinfo/utils"
)

// RaceIPProvider asks all providers at once and waits for every one of
// them to settle. The answer is the first success in provider order, not
// the fastest one.
type RaceIPProvider struct {
	providers []IPProvider
}

func NewRaceIPProvider(ctx context.Context, providers []IPProvider) (*RaceIPProvider, error) {
	return &RaceIPProvider{
		providers: providers,
	}, nil
}

func (rp *RaceIPProvider) Name() string {
	return "race"
}

func (rp *RaceIPProvider) Start(ctx context.Context) error {
	return nil
}

func (rp *RaceIPProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	results := make([]*utils.LookupResult, len(rp.providers))

	// tasks never return an error so one failure cannot cut the others short
	var group errgroup.Group
	for idx, provider := range rp.providers {
		idx, provider := idx, provider
		group.Go(func() error {
			info, err := provider.Lookup(ctx, query, idx != 0)
			if err != nil {
				log.Warn().Err(err).Str("provider", provider.Name()).Str("kind", string(query.Kind)).Msg("provider failed")
				return nil
			}

			results[idx] = info
			return nil
		})
	}
	group.Wait() // nolint: errcheck

	for _, info := range results {
		if info != nil {
			return info, nil
		}
	}

	return nil, nil
}

func (rp *RaceIPProvider) Shutdown(ctx context.Context) {
}

func (rp *RaceIPProvider) Refresh(ctx context.Context) error {
	for _, provider := range rp.providers {
		if err := provider.Refresh(ctx); err != nil {
			return err
		}
	}

	return nil
}
