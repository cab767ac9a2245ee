//go:build linux

package usb

import (
	"time"

	"github.com/DoraemonOS/android-system-core/adb/usb/descriptor"
)

// Policy decides whether an interface tuple identifies the bulk interface
// this transport should drive. See descriptor.Policy.
type Policy = descriptor.Policy

// TransportRegistry is the upstream consumer of discovered transports.
// Both notifications are one-shot and fire-and-forget from this layer's
// perspective.
//
// RegisterTransport announces a newly opened device. UnregisterTransport
// announces that a handle has become permanently unusable before it ever
// carried traffic (it is only delivered for handles that never became
// writable; a writable handle signals its death through failing transfers
// instead).
type TransportRegistry interface {
	RegisterTransport(h *Handle, serial, devpath string, writable bool)
	UnregisterTransport(h *Handle)
}

// Defaults for Options fields left zero.
const (
	DefaultBusRoot      = "/dev/bus/usb"
	DefaultScanInterval = 1 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// sysfsSerialDir is where device serial attributes live, keyed by the
// bus-topology name derived during scanning.
const sysfsSerialDir = "/sys/bus/usb/devices"

// Options configures discovery. Zero values select the defaults above.
type Options struct {
	// BusRoot is the usbfs tree to enumerate.
	BusRoot string

	// ScanInterval is the pause between discovery passes.
	ScanInterval time.Duration

	// WriteTimeout is the ceiling a bulk write waits for its completion.
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.BusRoot == "" {
		o.BusRoot = DefaultBusRoot
	}
	if o.ScanInterval <= 0 {
		o.ScanInterval = DefaultScanInterval
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = DefaultWriteTimeout
	}
	return o
}

// Candidate describes a device node whose descriptors matched the policy.
// Candidates are produced per scan pass and consumed by the registry; the
// registry is the persistent store.
type Candidate struct {
	Path        string // device node, e.g. /dev/bus/usb/001/004
	DevPath     string // sysfs-derived secondary path ("usb:1-4"), may be empty
	VendorID    uint16
	ProductID   uint16
	EndpointIn  uint8
	EndpointOut uint8
	Interface   uint8
	SerialIndex uint8
	ZeroMask    uint32
}
