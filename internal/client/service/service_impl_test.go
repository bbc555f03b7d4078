package service_test

import (
	"context"
	"testing"

	"github.com/smallbiznis/semah/internal/client/domain"
	"github.com/smallbiznis/semah/internal/client/repository"
	"github.com/smallbiznis/semah/internal/client/service"
	"github.com/smallbiznis/semah/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGetByID(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	id := node.Generate()
	testutil.SeedClient(t, db, id)

	client, err := svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, client.ID)
	assert.Equal(t, id.String()+"@example.com", client.Email)

	_, err = svc.GetByID(context.Background(), node.Generate())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestExists(t *testing.T) {
	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	svc := service.New(service.Params{DB: db, Log: zap.NewNop(), Repo: repository.Provide()})

	id := node.Generate()
	testutil.SeedClient(t, db, id)

	ok, err := svc.Exists(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Exists(context.Background(), node.Generate())
	require.NoError(t, err)
	assert.False(t, ok)
}
