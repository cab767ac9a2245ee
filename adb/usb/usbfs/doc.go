//go:build linux

// Package usbfs wraps the Linux usbfs character-device interface used to
// drive USB devices from user space.
//
// It covers exactly the capability surface the bulk transport consumes:
// opening a device node, claiming an interface, submitting and discarding
// asynchronous bulk URBs, reaping completed URBs, and waiting for completion
// readiness on the device descriptor. The wait is interruptible through a
// per-handle eventfd so a caller blocked in [WaitCompletion] can be
// unblocked without signals.
//
// URB layout and ioctl numbers follow include/uapi/linux/usbdevice_fs.h.
package usbfs
