// Package protocol defines the error taxonomy shared by the account and vehicle packages.
package protocol

import (
	"errors"
	"fmt"
)

// Error exposes methods useful for categorizing errors.
type Error interface {
	error

	// MayHaveSucceeded returns true if the Error was triggered by a command that might have been
	// executed. For example, if a client times out while polling for a command acknowledgement,
	// the vehicle may still carry out the command later. (Not all timeouts mean the command
	// MayHaveSucceeded, so the common Timeout() error interface is not appropriate here).
	MayHaveSucceeded() bool

	// Temporary returns true if the Error might be the result of a transient condition. For
	// example, the portal occasionally returns gateway errors while a command is still in flight.
	Temporary() bool
}

var (
	// ErrAuthenticationFailed indicates the portal rejected the provided credentials or PIN.
	ErrAuthenticationFailed = NewError("authentication rejected by portal", false, false)
	// ErrSessionExpired indicates the portal no longer accepts the session's cookies. Callers
	// should re-run login and retry; the error is not fatal.
	ErrSessionExpired = NewError("session expired: login required", false, false)
	// ErrVehicleNotFound indicates a vehicle index outside the account's registered vehicles.
	ErrVehicleNotFound = NewError("vehicle does not exist", false, false)
	// ErrCommandTimeout indicates the acknowledgement poller exhausted its attempt budget. The
	// vehicle may still execute the command after the client gives up.
	ErrCommandTimeout = NewError("timed out waiting for command acknowledgement", true, false)
	// ErrDataUnavailable indicates a response was missing fields the client requires.
	ErrDataUnavailable = errors.New("response missing expected fields")
	// ErrUnsupportedCommand indicates a command type the portal does not recognize.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

// CommandError wraps an error with categorization hints.
type CommandError struct {
	Err               error
	PossibleSuccess   bool
	PossibleTemporary bool
}

func NewError(message string, mayHaveSucceeded bool, temporary bool) error {
	return &CommandError{Err: errors.New(message), PossibleSuccess: mayHaveSucceeded, PossibleTemporary: temporary}
}

func (e *CommandError) Error() string {
	return e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) MayHaveSucceeded() bool {
	return e.PossibleSuccess
}

func (e *CommandError) Temporary() bool {
	return e.PossibleTemporary
}

// HttpError covers response codes other than 200 from the portal.
type HttpError struct {
	Code    int
	Message string
}

func (e *HttpError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Code)
	}
	return fmt.Sprintf("http %d: %s", e.Code, e.Message)
}

func (e *HttpError) MayHaveSucceeded() bool {
	if e.Code >= 400 && e.Code < 500 {
		return false
	}
	return e.Code != 503
}

func (e *HttpError) Temporary() bool {
	return e.Code == 408 || e.Code == 502 || e.Code == 503 || e.Code == 504
}

// MayHaveSucceeded returns true if err indicates a command may have been executed even though the
// client did not receive a confirmation from the portal.
func MayHaveSucceeded(err error) bool {
	var perr Error
	return errors.As(err, &perr) && perr.MayHaveSucceeded()
}

// Temporary returns true if err indicates a failure from possibly transient conditions that do not
// require user action to resolve.
func Temporary(err error) bool {
	var perr Error
	return errors.As(err, &perr) && perr.Temporary()
}

// ShouldRetry returns true if the client should retry the request that triggered err.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var perr Error
	if errors.As(err, &perr) {
		return !perr.MayHaveSucceeded() && perr.Temporary()
	}
	return false
}
