package provider

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/utils"
)

// CascadeIPProvider tries its providers in order and returns the first
// answer. A provider reporting ErrNotApplicable ends the cascade with no
// result.
type CascadeIPProvider struct {
	providers    []IPProvider
	stopAtErrors bool
}

func NewCascadeIPProvider(ctx context.Context, stopAtErrors bool, providers []IPProvider) (*CascadeIPProvider, error) {
	return &CascadeIPProvider{
		providers:    providers,
		stopAtErrors: stopAtErrors,
	}, nil
}

func (dpi *CascadeIPProvider) Name() string {
	return "cascade"
}

func (dpi *CascadeIPProvider) Start(ctx context.Context) error {
	// these should be already started

	return nil
}

func (dpi *CascadeIPProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	for idx, provider := range dpi.providers {
		info, err := provider.Lookup(ctx, query, idx != 0)
		if errors.Is(err, utils.ErrNotApplicable) {
			log.Debug().Str("provider", provider.Name()).Str("kind", string(query.Kind)).Str("key", query.Key()).Msg("provider not applicable, skipping lookup")
			return nil, nil
		}

		if err != nil {
			if dpi.stopAtErrors {
				return nil, err
			}

			log.Warn().Err(err).Str("provider", provider.Name()).Str("kind", string(query.Kind)).Msg("error while looking up, moving on to next provider")
			continue
		}

		if info != nil {
			return info, nil
		}
	}

	// not found
	return nil, nil
}

func (dpi *CascadeIPProvider) Shutdown(ctx context.Context) {
	// these should be already shutdown
}

func (dpi *CascadeIPProvider) Refresh(ctx context.Context) error {
	for _, provider := range dpi.providers {
		if err := provider.Refresh(ctx); err != nil {
			return err
		}
	}

	return nil
}
