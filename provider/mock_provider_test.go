package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cloud66-oss/ipinfo/utils"
)

type mockProvider struct {
	mock.Mock
	name string
}

var _ IPProvider = &mockProvider{}

func newMockProvider(name string) *mockProvider {
	return &mockProvider{name: name}
}

func (mp *mockProvider) Name() string {
	return mp.name
}

func (mp *mockProvider) Start(ctx context.Context) error {
	args := mp.Called(ctx)
	return args.Error(0)
}

func (mp *mockProvider) Lookup(ctx context.Context, query Query, asFallback bool) (*utils.LookupResult, error) {
	args := mp.Called(ctx, query, asFallback)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*utils.LookupResult), args.Error(1)
}

func (mp *mockProvider) Shutdown(ctx context.Context) {
	mp.Called(ctx)
}

func (mp *mockProvider) Refresh(ctx context.Context) error {
	args := mp.Called(ctx)
	return args.Error(0)
}
