package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInvalidSignature = errors.New("invalid event signature")
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// DuplicateEmailError is returned when a customer email is already provisioned.
type DuplicateEmailError struct {
	Email string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("customer with email %q already exists", e.Email)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// CommandError is returned when an external provisioning or deprovisioning
// operation exits non-zero. Output carries the command's stderr diagnostic;
// callers decide whether to surface or absorb it.
type CommandError struct {
	Op     string // "provision" or "deprovision"
	Target string // email or subdomain
	Output string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %q failed: %s", e.Op, e.Target, e.Output)
}
