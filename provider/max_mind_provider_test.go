package provider

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud66-oss/ipinfo/utils"
)

func TestMaxMindProviderRequiresPath(t *testing.T) {
	_, err := NewMaxMindProvider(context.Background(), "")
	assert.Error(t, err)
}

func TestMaxMindProviderMissingFile(t *testing.T) {
	ctx := context.Background()
	mmp, err := NewMaxMindProvider(ctx, filepath.Join(t.TempDir(), "GeoLite2-City.mmdb"))
	require.NoError(t, err)

	assert.Error(t, mmp.Start(ctx))

	_, err = mmp.Lookup(ctx, CountryCodeQuery("8.8.8.8"), true)
	var providerErr *utils.ProviderError
	assert.True(t, errors.As(err, &providerErr))
}

func TestMaxMindProviderNotApplicable(t *testing.T) {
	ctx := context.Background()
	mmp, err := NewMaxMindProvider(ctx, "/nonexistent.mmdb")
	require.NoError(t, err)

	for _, query := range []Query{
		PublicIPQuery(),
		CountryInfoQuery("DE"),
		CountryCodeQuery("10.0.0.1"),
		CountryCodeQuery("not-an-ip"),
	} {
		_, err := mmp.Lookup(ctx, query, false)
		assert.ErrorIs(t, err, utils.ErrNotApplicable, query)
	}
}

func TestIpStackProviderNotStarted(t *testing.T) {
	ctx := context.Background()
	provider, err := NewIpStackProvider(ctx, "")
	require.NoError(t, err)

	_, err = provider.Lookup(ctx, PublicIPQuery(), false)
	assert.ErrorIs(t, err, utils.ErrNotApplicable)

	_, err = provider.Lookup(ctx, CountryCodeQuery("8.8.8.8"), false)
	var providerErr *utils.ProviderError
	assert.True(t, errors.As(err, &providerErr))
}
