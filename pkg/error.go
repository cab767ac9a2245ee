package pkg

import "errors"

// Transport failure categories. Discovery absorbs parse, open, and claim
// failures silently; every other category is surfaced to the caller.
var (
	// ErrInvalidated indicates the device handle has been kicked and no
	// further transfers may be submitted on it.
	ErrInvalidated = errors.New("usb handle invalidated")

	// ErrTimeout indicates a transfer did not complete within its ceiling.
	ErrTimeout = errors.New("transfer timeout")

	// ErrShortTransfer indicates a transfer moved fewer bytes than requested.
	ErrShortTransfer = errors.New("short transfer")

	// ErrNoDevice indicates the kernel reported the device gone.
	ErrNoDevice = errors.New("device not present")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTypeMismatch indicates a descriptor header does not carry
	// the expected length and type tag.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrNoBulkInterface indicates no interface in the configuration matched
	// the policy predicate with two bulk endpoints.
	ErrNoBulkInterface = errors.New("no matching bulk interface")

	// ErrAlreadyRunning indicates the discovery loop has already started.
	ErrAlreadyRunning = errors.New("already running")
)
