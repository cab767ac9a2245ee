//go:build linux

// Package usb implements the host side of the debug bridge USB transport.
//
// A background discovery loop walks the usbfs bus tree, probes unknown
// device nodes for a bulk interface accepted by the caller's policy, opens
// and claims matching devices, and hands each one to an upstream
// [TransportRegistry] as a [Handle]. A Handle is a duplex byte stream over
// the device's bulk endpoint pair: [Handle.Write] and [Handle.Read] move
// exact-length payloads, [Handle.Kick] invalidates the handle and unblocks
// any waiter, and [Handle.Close] releases it.
//
// Devices that disappear from the bus are kicked by the discovery loop's
// mark-and-sweep pass but stay registered until their owner closes them, so
// an owner-initiated close never races a second invalidation.
package usb
