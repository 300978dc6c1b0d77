package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/happyleavesaoc/motorparts/internal/log"
	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
)

// Command is a remote instruction to change vehicle state. Values are the portal's wire strings.
type Command string

const (
	CommandLock        Command = "LOCK"
	CommandUnlock      Command = "UNLOCK"
	CommandEngineStart Command = "START"
	CommandEngineStop  Command = "STOP"
	CommandHornLights  Command = "HORN_LIGHT"
)

// endpoint returns the portal URL handling the command family. The same URL doubles as the
// command's status endpoint.
func (c Command) endpoint() (string, error) {
	switch c {
	case CommandLock, CommandUnlock:
		return account.LockURL, nil
	case CommandEngineStart, CommandEngineStop:
		return account.EngineURL, nil
	case CommandHornLights:
		return account.AlarmURL, nil
	}
	return "", fmt.Errorf("%w: %q", protocol.ErrUnsupportedCommand, string(c))
}

// State is the client-visible lifecycle of a dispatched command. Pending transitions to exactly
// one of Success or Failure; Failure is terminal and never retried automatically.
type State string

const (
	StatePending State = "pending"
	StateSuccess State = "success"
	StateFailure State = "failure"
)

// CommandStatus reports the outcome of a dispatched command.
type CommandStatus struct {
	// RequestID is the portal-issued identifier for the accepted command.
	RequestID string
	State     State
}

// SendCommand dispatches a remote command.
//
// The portal acknowledges a dispatch immediately with a request identifier; acceptance means the
// command was queued, not executed. With waitForAck false the returned status is Pending and no
// polling occurs. With waitForAck true, SendCommand polls the status endpoint at PollInterval
// until the command reaches a terminal state, the attempt budget runs out
// ([protocol.ErrCommandTimeout]), or ctx is cancelled.
func (v *Vehicle) SendCommand(ctx context.Context, command Command, waitForAck bool) (CommandStatus, error) {
	status := CommandStatus{State: StatePending}

	endpoint, err := command.endpoint()
	if err != nil {
		return status, err
	}
	pv, err := v.profileVehicle(ctx)
	if err != nil {
		return status, err
	}

	body, err := v.acct.PostForm(ctx, endpoint, url.Values{
		"pin":    {v.acct.PIN()},
		"vin":    {pv.VIN},
		"action": {string(command)},
	})
	if err != nil {
		return status, err
	}
	if err := account.CheckSession(body); err != nil {
		return status, err
	}
	var resp struct {
		ServiceRequestID string `json:"serviceRequestId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.ServiceRequestID == "" {
		return status, fmt.Errorf("%w: dispatch response carried no request identifier", protocol.ErrDataUnavailable)
	}
	status.RequestID = resp.ServiceRequestID
	log.Info("command %s accepted as request %s", command, status.RequestID)

	if !waitForAck {
		return status, nil
	}
	return v.pollStatus(ctx, endpoint, pv.VIN, status)
}

// pollStatus drives the acknowledgement loop. Transport failures while polling consume an
// attempt and are otherwise ignored: a network blip must not be mistaken for command failure.
func (v *Vehicle) pollStatus(ctx context.Context, endpoint, vin string, status CommandStatus) (CommandStatus, error) {
	interval := v.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	budget := v.MaxPollAttempts
	if budget <= 0 {
		budget = DefaultMaxPollAttempts
	}

	params := url.Values{
		"remoteServiceRequestID": {status.RequestID},
		"vin":                    {vin},
	}
	var lastErr error
	for attempt := 0; attempt < budget; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return status, ctx.Err()
			case <-time.After(interval):
			}
		}

		body, err := v.acct.Get(ctx, endpoint, params)
		if err != nil {
			if ctx.Err() != nil {
				return status, ctx.Err()
			}
			log.Warning("status poll for request %s failed: %s", status.RequestID, err)
			lastErr = err
			continue
		}
		var resp struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			log.Warning("unparseable status response for request %s: %s", status.RequestID, err)
			lastErr = err
			continue
		}

		switch resp.Status {
		case "SUCCESS":
			status.State = StateSuccess
			return status, nil
		case "FAILURE", "FAILED":
			status.State = StateFailure
			return status, nil
		case "PENDING", "IN_PROGRESS", "":
			log.Debug("request %s still pending", status.RequestID)
		default:
			// Unrecognized states are assumed non-terminal.
			log.Warning("treating unrecognized command status %q as pending", resp.Status)
		}
	}

	if lastErr != nil {
		return status, fmt.Errorf("%w (last poll error: %s)", protocol.ErrCommandTimeout, lastErr)
	}
	return status, protocol.ErrCommandTimeout
}
