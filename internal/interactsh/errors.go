package interactsh

import (
	"errors"
	"fmt"
)

var (
	// ErrState is returned when a method is called in a lifecycle state that
	// does not allow it. The more specific state errors below wrap it.
	ErrState = errors.New("invalid client state")

	// ErrNotRegistered is returned by Poll before Register succeeded.
	ErrNotRegistered = fmt.Errorf("%w: client is not registered", ErrState)

	// ErrAlreadyRegistered is returned by Register on a registered client.
	ErrAlreadyRegistered = fmt.Errorf("%w: client is already registered", ErrState)

	// ErrDeregistered is returned by Register and Poll after Deregister.
	ErrDeregistered = fmt.Errorf("%w: client is deregistered", ErrState)

	// ErrRegistration is returned when no provider accepted the registration.
	// The per-provider causes are joined into the returned error.
	ErrRegistration = errors.New("registration failed on all providers")

	// ErrNoServers is returned when the client has no providers configured.
	ErrNoServers = errors.New("no interactsh servers configured")

	// ErrPoll is returned when a poll round-trip fails. The client stays
	// registered and the next Poll may succeed.
	ErrPoll = errors.New("poll failed")

	// ErrDecrypt is returned when polled data cannot be decrypted.
	ErrDecrypt = errors.New("failed to decrypt interaction data")
)
