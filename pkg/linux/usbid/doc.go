//go:build linux

// Package usbid resolves USB vendor and product IDs to the names published
// in the usb.ids database that ships with most Linux distributions.
//
// Lookups are cheap: the file is parsed once, lazily, and unknown or
// unresolvable IDs degrade to their hex representation so callers can print
// results unconditionally.
package usbid
