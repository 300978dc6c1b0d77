package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

// Profile mirrors the portal's getProfile payload, trimmed to the fields the library uses.
type Profile struct {
	UserProfile struct {
		Email     string `json:"eMail"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	} `json:"userProfile"`
	Vehicles []ProfileVehicle `json:"vehicles"`
}

// ProfileVehicle is one registered vehicle as the portal reports it.
type ProfileVehicle struct {
	VIN      string `json:"vin"`
	Year     string `json:"year"`
	Make     string `json:"make"`
	Model    string `json:"model"`
	Odometer string `json:"odometerMileage"`
	UUID     string `json:"uuid"`
}

// GetProfile fetches the account profile, the root resource every other operation hangs off.
func GetProfile(ctx context.Context, acct *account.Account) (*Profile, error) {
	body, err := acct.Get(ctx, account.ProfileURL, nil)
	if err != nil {
		return nil, err
	}
	if err := account.CheckSession(body); err != nil {
		return nil, err
	}
	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("%w: %s", protocol.ErrDataUnavailable, err)
	}
	return &profile, nil
}

// UserSummary describes the account holder.
type UserSummary struct {
	Email string
	Name  string
}

// VehicleSummary describes one registered vehicle.
type VehicleSummary struct {
	VIN      string
	Year     string
	Make     string
	Model    string
	Odometer string
}

// Summary is the account profile condensed to the commonly wanted fields.
type Summary struct {
	User     UserSummary
	Vehicles []VehicleSummary
}

// GetSummary fetches the profile and condenses it.
func GetSummary(ctx context.Context, acct *account.Account) (*Summary, error) {
	profile, err := GetProfile(ctx, acct)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		User: UserSummary{
			Email: profile.UserProfile.Email,
			Name:  fmt.Sprintf("%s %s", profile.UserProfile.FirstName, profile.UserProfile.LastName),
		},
	}
	for _, v := range profile.Vehicles {
		summary.Vehicles = append(summary.Vehicles, VehicleSummary{
			VIN:      v.VIN,
			Year:     v.Year,
			Make:     v.Make,
			Model:    cleanModel(v),
			Odometer: v.Odometer,
		})
	}
	return summary, nil
}

// cleanModel strips the year and make the portal folds into the model field. Best guess.
func cleanModel(v ProfileVehicle) string {
	model := v.Model
	if v.Year != "" {
		model = strings.ReplaceAll(model, v.Year, "")
	}
	if v.Make != "" {
		model = strings.ReplaceAll(model, v.Make, "")
	}
	model = strings.TrimSpace(model)
	if i := strings.IndexByte(model, ' '); i >= 0 {
		model = model[:i]
	}
	return model
}
