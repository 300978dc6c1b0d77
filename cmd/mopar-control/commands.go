package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/vehicle"
)

var ErrUnknownCommand = errors.New("unrecognized command")

// waitForAck mirrors the -no-wait flag; command handlers consult it when dispatching.
var waitForAck = true

type Handler func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error

type Command struct {
	help    string
	handler Handler
}

func sendCommand(ctx context.Context, car *vehicle.Vehicle, command vehicle.Command) error {
	status, err := car.SendCommand(ctx, command, waitForAck)
	if err != nil {
		return err
	}
	switch status.State {
	case vehicle.StatePending:
		fmt.Printf("Command accepted as request %s (not yet executed).\n", status.RequestID)
	case vehicle.StateSuccess:
		fmt.Println("OK")
	case vehicle.StateFailure:
		fmt.Printf("Vehicle reported failure for request %s.\n", status.RequestID)
	}
	return nil
}

var commands = map[string]*Command{
	"lock": {
		help: "Lock the doors",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			return sendCommand(ctx, car, vehicle.CommandLock)
		},
	},
	"unlock": {
		help: "Unlock the doors",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			return sendCommand(ctx, car, vehicle.CommandUnlock)
		},
	},
	"start": {
		help: "Start the engine",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			return sendCommand(ctx, car, vehicle.CommandEngineStart)
		},
	},
	"stop": {
		help: "Stop the engine",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			return sendCommand(ctx, car, vehicle.CommandEngineStop)
		},
	},
	"horn": {
		help: "Sound the horn and flash the lights",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			return sendCommand(ctx, car, vehicle.CommandHornLights)
		},
	},
	"summary": {
		help: "Show the account's user and vehicles",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			summary, err := vehicle.GetSummary(ctx, acct)
			if err != nil {
				return err
			}
			fmt.Printf("%s <%s>\n", summary.User.Name, summary.User.Email)
			for i, v := range summary.Vehicles {
				fmt.Printf("  [%d] %s %s %s  VIN %s  %s miles\n", i, v.Year, v.Make, v.Model, v.VIN, v.Odometer)
			}
			return nil
		},
	},
	"report": {
		help: "Show the vehicle health report",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			report, err := car.HealthReport(ctx)
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(report))
			for key := range report {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("%s: %s\n", key, report[key])
			}
			return nil
		},
	},
	"vhr": {
		help: "Show the full vehicle health report as JSON",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			full, err := car.FullHealthReport(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(full, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	},
	"tow-guide": {
		help: "Show towing capacity details",
		handler: func(ctx context.Context, acct *account.Account, car *vehicle.Vehicle) error {
			guide, err := car.GetTowGuide(ctx)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(guide, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	},
}

func execute(ctx context.Context, acct *account.Account, car *vehicle.Vehicle, args []string) error {
	if len(args) == 0 {
		return ErrUnknownCommand
	}
	info, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
	if len(args) > 1 {
		return fmt.Errorf("%s takes no arguments", args[0])
	}
	return info.handler(ctx, acct, car)
}
