package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ResolveOffering(ctx context.Context, kind Kind, id snowflake.ID) (Offering, error)
}

var (
	ErrInvalidKind     = errors.New("invalid_offering_kind")
	ErrInvalidID       = errors.New("invalid_offering_id")
	ErrNotFound        = errors.New("offering_not_found")
	ErrInvalidOffering = errors.New("offering_unfulfillable")
)
