package cdc

import "errors"

// Package sentinel errors, in the style of pkg/error.go. Reuses the shared
// pkg.Err* sentinels wherever one already says the right thing; these cover
// only what's specific to this driver.
var (
	// ErrSlotExhausted indicates the interface table has no free slot.
	ErrSlotExhausted = errors.New("cdc: no free interface slot")

	// ErrDescriptorInvalid indicates a descriptor block did not match the
	// expected class/subclass/protocol/endpoint layout for any opener.
	ErrDescriptorInvalid = errors.New("cdc: invalid or unrecognized descriptor")

	// ErrUnknownVendor indicates a vendor-class interface whose (vid, pid)
	// matched neither the FTDI nor the CP210x allow-list.
	ErrUnknownVendor = errors.New("cdc: unrecognized vendor-specific device")

	// ErrNotMounted indicates an operation was attempted on an interface
	// index that is not currently occupied.
	ErrNotMounted = errors.New("cdc: interface not mounted")

	// ErrWrongProtocol indicates an operation that only one protocol variant
	// supports was attempted on an interface of a different variant.
	ErrWrongProtocol = errors.New("cdc: operation not supported by this protocol variant")
)
