package authorization

import (
	"context"
	"testing"

	"github.com/smallbiznis/semah/internal/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := newEnforcer(nil)
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeClientMayPurchase(t *testing.T) {
	svc := newTestService(t)
	client := identity.Principal{ID: 1001, Role: identity.RoleClient}

	assert.NoError(t, svc.Authorize(context.Background(), client, ObjectCheckout, ActionCheckoutPurchase))
	assert.NoError(t, svc.Authorize(context.Background(), client, ObjectCheckout, ActionCheckoutComplete))
}

func TestAuthorizeOtherRolesForbidden(t *testing.T) {
	svc := newTestService(t)

	for _, role := range []identity.Role{identity.RoleEmployee, identity.RoleAdmin, identity.RoleCommissioner} {
		t.Run(role.String(), func(t *testing.T) {
			p := identity.Principal{ID: 2002, Role: role}
			assert.ErrorIs(t, svc.Authorize(context.Background(), p, ObjectCheckout, ActionCheckoutPurchase), ErrForbidden)
		})
	}
}

func TestAuthorizeInvalidInput(t *testing.T) {
	svc := newTestService(t)
	client := identity.Principal{ID: 1001, Role: identity.RoleClient}

	assert.ErrorIs(t, svc.Authorize(context.Background(), identity.Principal{Role: identity.RoleClient}, ObjectCheckout, ActionCheckoutPurchase), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(context.Background(), identity.Principal{ID: 1, Role: "root"}, ObjectCheckout, ActionCheckoutPurchase), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(context.Background(), client, " ", ActionCheckoutPurchase), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(context.Background(), client, ObjectCheckout, ""), ErrInvalidAction)
}
