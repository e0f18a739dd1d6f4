package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/qioalice/ipstack"
	"github.com/rs/zerolog/log"

	"github.com/cloud66-oss/ipinfo/utils"
)

// IpStackProvider resolves country codes and details through the ipstack
// API. It needs an API key.
type IpStackProvider struct {
	apiKey string
	cli    *ipstack.Client
}

func NewIpStackProvider(ctx context.Context, apiKey string) (*IpStackProvider, error) {
	return &IpStackProvider{apiKey: apiKey}, nil
}

func (provider *IpStackProvider) Name() string {
	return "ipstack"
}

func (provider *IpStackProvider) Start(ctx context.Context) error {
	log.Info().Msg("starting IpStack Provider")

	cli, err := ipstack.New(
		ipstack.ParamToken(provider.apiKey),
		ipstack.ParamUseHTTPS(true),
	)

	if err != nil {
		log.Info().Msg("failed to create IpStack client. Have you remembered to set the API key? You can use the IPINFO_PROVIDERS_IPSTACK_APIKEY environment variable or providers.ipstack.apikey in the config file or as a param")
		return err
	}

	provider.cli = cli

	return nil
}

func (provider *IpStackProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	if query.Kind != CountryCode && query.Kind != IPDetails {
		return nil, utils.ErrNotApplicable
	}
	if utils.IsLocal(query.Address) {
		return nil, utils.ErrNotApplicable
	}
	if provider.cli == nil {
		return nil, provider.failure(utils.FailureNetwork, errors.New("client not started"))
	}

	ipInfo, err := provider.cli.IP(query.Address)
	if err != nil {
		return nil, provider.failure(utils.FailureNetwork, err)
	}

	code, err := normalizeCountryCode(ipInfo.CountryCode)
	if err != nil {
		return nil, provider.failure(utils.FailureMalformed, fmt.Errorf("no country for %s: %w", query.Address, err))
	}

	// time zone and connection data are not part of every ipstack plan
	return &utils.LookupResult{
		Address:     query.Address,
		CountryCode: code,
		Region:      ipInfo.RegionName,
		City:        ipInfo.City,
		Postal:      ipInfo.Zip,
		Source:      provider.Name(),
		IsFallback:  asFallback,
	}, nil
}

func (provider *IpStackProvider) failure(reason utils.FailureReason, cause error) error {
	return &utils.ProviderError{
		Provider: provider.Name(),
		Reason:   reason,
		Cause:    cause,
	}
}

func (provider *IpStackProvider) Shutdown(ctx context.Context) {
	log.Info().Msg("shutting down IpStack Provider")
}

func (provider *IpStackProvider) Refresh(ctx context.Context) error {
	return nil
}
