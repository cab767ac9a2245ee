//go:build linux

package usbfs

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/pkg"
)

// URB transfer types for SubmitURB.
const (
	URBTypeISO       = 0 // Isochronous
	URBTypeInterrupt = 1 // Interrupt
	URBTypeControl   = 2 // Control
	URBTypeBulk      = 3 // Bulk
)

// URB represents a USB Request Block for async I/O.
// This must match the kernel's struct usbdevfs_urb layout.
type URB struct {
	Type         uint8          // URB type (control, bulk, interrupt, iso)
	Endpoint     uint8          // Endpoint address
	Status       int32          // Negative errno after completion
	Flags        uint32         // URB flags
	Buffer       unsafe.Pointer // Data buffer
	BufferLength int32          // Length of data buffer
	ActualLength int32          // Actual bytes transferred
	StartFrame   int32          // Start frame for ISO transfers
	StreamID     uint32         // Stream ID for USB 3.0 bulk streams
	ErrorCount   int32          // Error count for ISO transfers
	Signr        uint32         // Signal number for async notification
	UserContext  unsafe.Pointer // User context pointer
}

// SetBuffer points the URB at data. The caller must keep data referenced
// until the URB is reaped or discarded; the kernel writes through this
// pointer.
func (u *URB) SetBuffer(data []byte) {
	u.BufferLength = int32(len(data))
	if len(data) > 0 {
		u.Buffer = unsafe.Pointer(&data[0])
	} else {
		u.Buffer = nil
	}
}

// Err maps a completed URB's status to an error. A zero status is success;
// a nonzero status is the negated errno recorded by the kernel, with ENODEV
// and ENOENT (discarded after device removal) folded into pkg.ErrNoDevice
// and ETIMEDOUT into pkg.ErrTimeout.
func (u *URB) Err() error {
	if u.Status == 0 {
		return nil
	}
	errno := unix.Errno(-u.Status)
	switch errno {
	case unix.ENODEV, unix.ENOENT:
		return pkg.ErrNoDevice
	case unix.ETIMEDOUT:
		return pkg.ErrTimeout
	}
	return errno
}

// Open opens a USB device node with the given access flags
// (unix.O_RDWR or unix.O_RDONLY); O_CLOEXEC is always added.
func Open(path string, flags int) (int, error) {
	return unix.Open(path, flags|unix.O_CLOEXEC, 0)
}

// Close closes a device file descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}

// ioctlRaw performs a raw ioctl syscall.
func ioctlRaw(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

// ClaimInterface claims exclusive access to an interface.
func ClaimInterface(fd int, iface uint32) error {
	return ioctlRaw(fd, ioctlClaimInterface, uintptr(unsafe.Pointer(&iface)))
}

// ReleaseInterface releases a previously claimed interface.
func ReleaseInterface(fd int, iface uint32) error {
	return ioctlRaw(fd, ioctlReleaseInterface, uintptr(unsafe.Pointer(&iface)))
}

// SubmitURB queues a URB for asynchronous processing. The URB and its
// buffer must stay referenced until the URB is reaped or discarded.
func SubmitURB(fd int, u *URB) error {
	return ioctlRaw(fd, ioctlSubmitURB, uintptr(unsafe.Pointer(u)))
}

// DiscardURB cancels a pending URB. A URB that is not outstanding fails
// with EINVAL, which callers cancelling best-effort may ignore. A discarded
// URB is still delivered through reaping, with status -ENOENT.
func DiscardURB(fd int, u *URB) error {
	return ioctlRaw(fd, ioctlDiscardURB, uintptr(unsafe.Pointer(u)))
}

// ReapURBNoWait retrieves a completed URB without blocking. It returns the
// same *URB previously passed to SubmitURB, or EAGAIN if none is ready.
func ReapURBNoWait(fd int) (*URB, error) {
	var p unsafe.Pointer
	if err := ioctlRaw(fd, ioctlReapURBNDelay, uintptr(unsafe.Pointer(&p))); err != nil {
		return nil, err
	}
	return (*URB)(p), nil
}

// IsNoDevice returns true if the error indicates the device was removed.
func IsNoDevice(err error) bool {
	return errors.Is(err, unix.ENODEV) || errors.Is(err, pkg.ErrNoDevice)
}

// IsAgain returns true if the error indicates nothing ready (EAGAIN).
func IsAgain(err error) bool {
	return errors.Is(err, unix.EAGAIN)
}

// NewWakeFD creates the eventfd used to interrupt WaitCompletion.
func NewWakeFD() (int, error) {
	return unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
}

// Wake unblocks a WaitCompletion call polling wakefd. Harmless when no
// wait is in progress; the counter is drained at the next wait.
func Wake(wakefd int) error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, err := unix.Write(wakefd, one[:])
	return err
}

// WaitCompletion blocks until a completed URB may be reaped from devfd or
// wakefd is written. It reports nothing about which URB completed; callers
// reap with ReapURBNoWait until EAGAIN. EINTR is returned to the caller,
// which decides whether to re-enter the wait.
func WaitCompletion(devfd, wakefd int) error {
	fds := []unix.PollFd{
		// usbfs marks the descriptor writable when a completion is ready.
		{Fd: int32(devfd), Events: unix.POLLOUT | unix.POLLERR | unix.POLLHUP},
		{Fd: int32(wakefd), Events: unix.POLLIN},
	}
	_, err := unix.Poll(fds, -1)
	if err != nil {
		return err
	}
	if fds[1].Revents&unix.POLLIN != 0 {
		drainWake(wakefd)
	}
	return nil
}

// drainWake consumes the eventfd counter so stale wakeups do not satisfy a
// future wait.
func drainWake(wakefd int) {
	var buf [8]byte
	for {
		if _, err := unix.Read(wakefd, buf[:]); err != nil {
			return
		}
	}
}
