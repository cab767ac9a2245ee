// Package descriptor walks raw USB descriptor blobs as exposed by Linux
// usbfs device nodes.
//
// A blob read from /dev/bus/usb/BBB/DDD starts with the device descriptor,
// followed by the active configuration descriptor, followed by the
// configuration's interface, endpoint, and class-specific records as a
// sequence of length-prefixed, type-tagged entries. [FindBulkInterface]
// walks that sequence looking for a two-endpoint bulk interface accepted by
// a caller-supplied [Policy].
//
// The package is pure: it performs no I/O and holds no state, so it can be
// exercised against synthetic blobs without any device present.
package descriptor
