package adapters

import (
	"context"
	"testing"

	"github.com/smallbiznis/semah/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct{}

func (stubGateway) Provider() string { return "stub" }

func (stubGateway) CreateSession(context.Context, domain.SessionRequest) (domain.Session, error) {
	return domain.Session{}, nil
}

func (stubGateway) ResolveSession(context.Context, string) (domain.SessionOutcome, error) {
	return domain.SessionOutcome{}, nil
}

type stubFactory struct{ name string }

func (f stubFactory) Provider() string { return f.name }

func (f stubFactory) NewGateway(domain.AdapterConfig) (domain.Gateway, error) {
	return stubGateway{}, nil
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(stubFactory{name: " Stub "}, nil, stubFactory{name: ""})

	assert.True(t, registry.ProviderExists("STUB"))
	assert.False(t, registry.ProviderExists("paypal"))

	gw, err := registry.NewGateway("stub", domain.AdapterConfig{})
	require.NoError(t, err)
	assert.Equal(t, "stub", gw.Provider())

	_, err = registry.NewGateway("paypal", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var nilRegistry *Registry
	_, err = nilRegistry.NewGateway("stub", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
