// Package vehicle exposes the owner portal's vehicle resources and remote commands.
//
// A [Vehicle] references one of the account's registered vehicles by its position in the
// account profile. The reference is resolved against a freshly fetched profile on every
// operation, so a reordered vehicle list on the portal side is picked up immediately.
package vehicle

import (
	"context"
	"time"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

const (
	// DefaultPollInterval is the delay between command acknowledgement polls.
	DefaultPollInterval = 3 * time.Second
	// DefaultMaxPollAttempts bounds the acknowledgement poller. A vehicle that never
	// acknowledges must not block the caller forever.
	DefaultMaxPollAttempts = 20
)

// Vehicle selects one vehicle of an account.
type Vehicle struct {
	// PollInterval and MaxPollAttempts control acknowledgement polling. Zero values fall back
	// to the package defaults.
	PollInterval    time.Duration
	MaxPollAttempts int

	acct  *account.Account
	index int
}

// New returns a Vehicle referencing the account's vehicle at the given profile index. The index
// is validated against the portal's response when an operation runs, not here.
func New(acct *account.Account, index int) *Vehicle {
	return &Vehicle{
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
		acct:            acct,
		index:           index,
	}
}

// Index returns the vehicle's position in the account profile.
func (v *Vehicle) Index() int {
	return v.index
}

func (v *Vehicle) profileVehicle(ctx context.Context) (*ProfileVehicle, error) {
	profile, err := GetProfile(ctx, v.acct)
	if err != nil {
		return nil, err
	}
	if v.index < 0 || v.index >= len(profile.Vehicles) {
		return nil, protocol.ErrVehicleNotFound
	}
	return &profile.Vehicles[v.index], nil
}
