// Package assignment picks the employee who delivers a booked service.
package assignment

import (
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var ErrNoEligibleProvider = errors.New("no_eligible_provider")

// Policy chooses exactly one provider from the eligible set.
type Policy interface {
	Assign(eligible []snowflake.ID) (snowflake.ID, error)
}

// FirstEligible selects the first provider in declared order.
type FirstEligible struct{}

func NewFirstEligible() Policy {
	return FirstEligible{}
}

func (FirstEligible) Assign(eligible []snowflake.ID) (snowflake.ID, error) {
	for _, id := range eligible {
		if id != 0 {
			return id, nil
		}
	}
	return 0, ErrNoEligibleProvider
}

var Module = fx.Module("assignment",
	fx.Provide(NewFirstEligible),
)
