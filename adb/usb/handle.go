//go:build linux

package usb

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/adb/usb/usbfs"
	"github.com/DoraemonOS/android-system-core/pkg"
)

// Handle is one open device: its file descriptor, its bulk endpoint pair,
// and the pending-transfer state machine for both directions. Handles are
// created by the registry during discovery and destroyed only by their
// owner's Close; a kicked handle stays registered, dead, until then.
//
// At most one Read and one Write may be outstanding per handle; running
// them from separate goroutines is the expected pattern. Preventing two
// simultaneous Reads is the caller's responsibility.
type Handle struct {
	path    string
	devpath string
	serial  string

	ops usbOps
	reg *Registry

	mu       sync.Mutex
	fd       int
	wakeFD   int
	epIn     uint8
	epOut    uint8
	iface    uint8
	zeroMask uint32
	writable bool

	// Per-direction pending transfer state. The URB structs are reused
	// across transfers; busy is true exactly while the kernel owns one.
	urbIn   usbfs.URB
	urbOut  usbfs.URB
	inBuf   []byte // pins the in-flight read buffer
	outBuf  []byte // pins the in-flight write buffer
	inBusy  bool
	outBusy bool

	// reaping is true while a Read caller is parked in the completion
	// wait; Kick uses it to decide whether the wake eventfd needs writing.
	reaping bool

	dead bool

	// mark is the discovery sweep flag, touched only under the registry
	// lock.
	mark bool

	// outDone carries out-transfer completion to a blocked writer; kicked
	// is closed once by Kick so a writer never outlives invalidation.
	outDone chan struct{}
	kicked  chan struct{}

	writeTimeout time.Duration
}

// Path returns the device node path, the handle's identity in the registry.
func (h *Handle) Path() string { return h.path }

// DevPath returns the sysfs-derived secondary path, if one was resolved.
func (h *Handle) DevPath() string { return h.devpath }

// Serial returns the serial string read at registration, possibly empty.
func (h *Handle) Serial() string { return h.serial }

// Writable reports whether the device opened read-write with its interface
// claimed. Read-only handles exist so the upstream layer can show the
// device to the user, but carry no traffic.
func (h *Handle) Writable() bool { return h.writable }

// transferErr normalizes submission and reap errors.
func transferErr(op string, err error) error {
	if usbfs.IsNoDevice(err) {
		return fmt.Errorf("%s: %w", op, pkg.ErrNoDevice)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// bulkWrite submits one outbound transfer and waits for its completion with
// a fixed ceiling. The completion itself is reaped by whichever goroutine
// is parked in bulkRead's wait; this side only waits to be told. On timeout
// the URB is left outstanding at the kernel, matching the read side's
// assumption that a later Kick forces the slot clean.
func (h *Handle) bulkWrite(data []byte) (int, error) {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return 0, pkg.ErrInvalidated
	}

	h.urbOut = usbfs.URB{
		Type:     usbfs.URBTypeBulk,
		Endpoint: h.epOut,
		Status:   -1,
	}
	h.urbOut.SetBuffer(data)
	h.outBuf = data

	if err := h.ops.SubmitURB(h.fd, &h.urbOut); err != nil {
		h.mu.Unlock()
		return 0, transferErr("submit out urb", err)
	}
	h.outBusy = true

	// Drop any completion signal left over from an earlier timed-out
	// write; it described a different transfer.
	select {
	case <-h.outDone:
	default:
	}
	h.mu.Unlock()

	timer := time.NewTimer(h.writeTimeout)
	defer timer.Stop()

	for {
		select {
		case <-h.outDone:
		case <-h.kicked:
			return 0, pkg.ErrInvalidated
		case <-timer.C:
			return 0, pkg.ErrTimeout
		}

		h.mu.Lock()
		if h.dead {
			h.mu.Unlock()
			return 0, pkg.ErrInvalidated
		}
		if !h.outBusy {
			err := h.urbOut.Err()
			n := int(h.urbOut.ActualLength)
			h.outBuf = nil
			h.mu.Unlock()
			if err != nil {
				return 0, err
			}
			return n, nil
		}
		h.mu.Unlock()
	}
}

// bulkRead submits one inbound transfer and then performs the blocking
// completion wait itself. The wait demultiplexes completions for both
// directions: an out completion updates the writer's state and loops back,
// an in completion resolves this call.
func (h *Handle) bulkRead(data []byte) (int, error) {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return 0, pkg.ErrInvalidated
	}

	h.urbIn = usbfs.URB{
		Type:     usbfs.URBTypeBulk,
		Endpoint: h.epIn,
		Status:   -1,
	}
	h.urbIn.SetBuffer(data)
	h.inBuf = data

	if err := h.ops.SubmitURB(h.fd, &h.urbIn); err != nil {
		h.mu.Unlock()
		return 0, transferErr("submit in urb", err)
	}
	h.inBusy = true

	for {
		h.reaping = true
		fd, wake := h.fd, h.wakeFD
		h.mu.Unlock()

		// The wait must not hold the handle lock; it can block for as
		// long as the device stays silent.
		werr := h.ops.WaitCompletion(fd, wake)

		h.mu.Lock()
		h.reaping = false
		if h.dead {
			h.inBuf = nil
			h.mu.Unlock()
			return 0, pkg.ErrInvalidated
		}
		if werr != nil {
			if errors.Is(werr, unix.EINTR) {
				continue
			}
			h.inBuf = nil
			h.mu.Unlock()
			return 0, transferErr("wait completion", werr)
		}

		for {
			u, rerr := h.ops.ReapURBNoWait(fd)
			if rerr != nil {
				if usbfs.IsAgain(rerr) {
					break // nothing left to reap, wait again
				}
				h.inBuf = nil
				h.mu.Unlock()
				return 0, transferErr("reap urb", rerr)
			}

			switch u {
			case &h.urbIn:
				h.inBusy = false
				err := h.urbIn.Err()
				// The partial length rides along with a timeout so the
				// caller can keep what arrived and retry the rest.
				n := int(h.urbIn.ActualLength)
				h.inBuf = nil
				h.mu.Unlock()
				return n, err

			case &h.urbOut:
				// A write is outstanding on the same handle; hand its
				// result to the blocked writer and keep waiting for the
				// in transfer.
				h.outBusy = false
				select {
				case h.outDone <- struct{}{}:
				default:
				}

			default:
				pkg.LogWarn(pkg.ComponentTransfer, "reaped unknown urb",
					"path", h.path, "endpoint", u.Endpoint)
			}
		}
	}
}

// Write sends the whole payload over the outbound endpoint. A transfer that
// moves fewer bytes than requested fails with pkg.ErrShortTransfer. When
// the interface requires zero-packet termination and the payload length is
// an exact multiple of the packet size, a zero-length terminator follows.
func (h *Handle) Write(data []byte) error {
	n, err := h.bulkWrite(data)
	if err != nil {
		pkg.LogDebug(pkg.ComponentTransfer, "usb write failed",
			"path", h.path, "len", len(data), "error", err)
		return err
	}
	if n != len(data) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(data), pkg.ErrShortTransfer)
	}

	if h.zeroMask != 0 && uint32(len(data))&h.zeroMask == 0 {
		_, err := h.bulkWrite(nil)
		return err
	}
	return nil
}

// Read fills data completely from the inbound endpoint. A timeout on a
// still-live handle is recoverable: whatever arrived is kept and the
// remainder is retried. Any other failure is returned immediately.
func (h *Handle) Read(data []byte) error {
	for len(data) > 0 {
		n, err := h.bulkRead(data)
		if err != nil {
			if errors.Is(err, pkg.ErrTimeout) && !h.isDead() {
				data = data[n:]
				continue
			}
			pkg.LogDebug(pkg.ComponentTransfer, "usb read failed",
				"path", h.path, "remaining", len(data), "error", err)
			return err
		}
		if n != len(data) {
			return fmt.Errorf("read %d of %d bytes: %w", n, len(data), pkg.ErrShortTransfer)
		}
		data = data[n:]
	}
	return nil
}

func (h *Handle) isDead() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dead
}

// Kick marks the handle permanently unusable and unblocks anything waiting
// on it. Idempotent. For a writable handle, the parked reader (if any) is
// woken through the eventfd, both pending transfers are cancelled
// best-effort, and their slots are forced to a device-gone state so waiters
// resolve instead of hanging. A handle that never became writable has no
// waiters to release, so the upstream layer is told directly that the
// transport is gone.
func (h *Handle) Kick() {
	h.mu.Lock()
	if h.dead {
		h.mu.Unlock()
		return
	}
	h.dead = true
	pkg.LogDebug(pkg.ComponentTransfer, "kicking usb handle",
		"path", h.path, "writable", h.writable)

	if h.writable {
		if h.reaping {
			if err := h.ops.Wake(h.wakeFD); err != nil {
				pkg.LogWarn(pkg.ComponentTransfer, "wake failed",
					"path", h.path, "error", err)
			}
		}

		// Cancel whatever is pending. These quietly fail when a transfer
		// is not outstanding, but a discarded URB becomes reapable and
		// that alone unblocks a reader parked in the completion wait.
		_ = h.ops.DiscardURB(h.fd, &h.urbIn)
		_ = h.ops.DiscardURB(h.fd, &h.urbOut)

		h.urbIn.Status = -int32(unix.ENODEV)
		h.urbOut.Status = -int32(unix.ENODEV)
		h.inBusy = false
		h.outBusy = false
		close(h.kicked)
		select {
		case h.outDone <- struct{}{}:
		default:
		}
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	// Never writable: nothing can be blocked on it, but upstream must
	// still learn the transport is gone.
	h.reg.upstream.UnregisterTransport(h)
}

// Close removes the handle from the registry and releases its owned
// resources exactly once. Registry membership is serialized by the registry
// lock, so a concurrent sweep cannot kick a handle that has already been
// closed here.
func (h *Handle) Close() error {
	if h.reg != nil {
		h.reg.remove(h)
	}
	return h.release()
}

// release closes the device descriptor and wake eventfd. Safe to call more
// than once; only the first call does work.
func (h *Handle) release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var result *multierror.Error
	if h.fd >= 0 {
		if h.writable {
			// Best-effort: the kernel releases claims on close anyway.
			_ = h.ops.ReleaseInterface(h.fd, uint32(h.iface))
		}
		if err := h.ops.Close(h.fd); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", h.path, err))
		}
		h.fd = -1
	}
	if h.wakeFD >= 0 {
		if err := h.ops.Close(h.wakeFD); err != nil {
			result = multierror.Append(result, fmt.Errorf("close wake fd: %w", err))
		}
		h.wakeFD = -1
	}
	return result.ErrorOrNil()
}
