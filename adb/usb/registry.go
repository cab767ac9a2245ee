//go:build linux

package usb

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/pkg"
)

// Registry tracks every device-node path currently owned by a handle.
// Discovery consults it to skip paths already taken, feeds it candidates to
// open, and drives its mark-and-sweep pass between scans.
type Registry struct {
	ops      usbOps
	upstream TransportRegistry
	opts     Options

	mu      sync.Mutex
	handles map[string]*Handle // keyed by device node path
}

// NewRegistry returns an empty registry reporting to upstream.
func NewRegistry(upstream TransportRegistry, opts Options) *Registry {
	return newRegistry(sysOps{}, upstream, opts)
}

func newRegistry(ops usbOps, upstream TransportRegistry, opts Options) *Registry {
	return &Registry{
		ops:      ops,
		upstream: upstream,
		opts:     opts.withDefaults(),
		handles:  make(map[string]*Handle),
	}
}

// lookupOrMark reports whether path is already registered, marking the
// existing handle as seen so the next sweep keeps it.
func (r *Registry) lookupOrMark(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[path]
	if ok {
		h.mark = true
	}
	return ok
}

// Register opens the candidate device and installs it in the registry. The
// device is first opened read-write so its interface can be claimed; when
// permissions forbid that, it is reopened read-only and registered anyway
// so upstream can surface it to the user. A claim failure on a read-write
// descriptor rejects the device outright.
//
// The handle is announced to upstream after installation. Registration
// failure is logged, not returned; the next scan pass retries naturally.
func (r *Registry) Register(c Candidate) {
	writable := true
	fd, err := r.ops.Open(c.Path, unix.O_RDWR)
	if err != nil {
		writable = false
		fd, err = r.ops.Open(c.Path, unix.O_RDONLY)
		if err != nil {
			pkg.LogWarn(pkg.ComponentRegistry, "cannot open device",
				"path", c.Path, "error", err)
			return
		}
	}

	if writable {
		if err := r.ops.ClaimInterface(fd, uint32(c.Interface)); err != nil {
			pkg.LogWarn(pkg.ComponentRegistry, "cannot claim interface",
				"path", c.Path, "interface", c.Interface, "error", err)
			_ = r.ops.Close(fd)
			return
		}
	}

	wakeFD := -1
	if writable {
		wakeFD, err = r.ops.NewWakeFD()
		if err != nil {
			pkg.LogWarn(pkg.ComponentRegistry, "cannot create wake fd",
				"path", c.Path, "error", err)
			_ = r.ops.ReleaseInterface(fd, uint32(c.Interface))
			_ = r.ops.Close(fd)
			return
		}
	}

	serial := readSerial(c.DevPath, c.SerialIndex)

	h := &Handle{
		path:         c.Path,
		devpath:      c.DevPath,
		serial:       serial,
		ops:          r.ops,
		reg:          r,
		fd:           fd,
		wakeFD:       wakeFD,
		epIn:         c.EndpointIn,
		epOut:        c.EndpointOut,
		iface:        c.Interface,
		zeroMask:     c.ZeroMask,
		writable:     writable,
		mark:         true,
		outDone:      make(chan struct{}, 1),
		kicked:       make(chan struct{}),
		writeTimeout: r.opts.WriteTimeout,
	}

	r.mu.Lock()
	if _, exists := r.handles[c.Path]; exists {
		// Lost a race with another registration of the same node.
		r.mu.Unlock()
		_ = h.release()
		return
	}
	r.handles[c.Path] = h
	r.mu.Unlock()

	pkg.LogInfo(pkg.ComponentRegistry, "registered usb device",
		"path", c.Path, "devpath", c.DevPath, "serial", serial,
		"writable", writable, "zero_mask", c.ZeroMask)

	r.upstream.RegisterTransport(h, serial, c.DevPath, writable)
}

// Sweep kicks every registered handle not marked by the scan pass that just
// finished, then clears all marks. Kicked handles stay in the registry; the
// owner's Close removes them. Kicks run after the registry lock is dropped
// so an upstream callback cannot deadlock against a concurrent Close.
func (r *Registry) Sweep() {
	var gone []*Handle

	r.mu.Lock()
	for _, h := range r.handles {
		if !h.mark {
			gone = append(gone, h)
		}
		h.mark = false
	}
	r.mu.Unlock()

	for _, h := range gone {
		pkg.LogInfo(pkg.ComponentRegistry, "usb device disconnected",
			"path", h.path, "serial", h.serial)
		h.Kick()
	}
}

// remove unlinks the handle from the registry. Called from Handle.Close.
func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.handles[h.path]; ok && cur == h {
		delete(r.handles, h.path)
	}
}

// Len reports how many handles are registered, dead ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Close kicks and releases every registered handle. Intended for shutdown,
// after the discovery loop has stopped.
func (r *Registry) Close() error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.handles = make(map[string]*Handle)
	r.mu.Unlock()

	var result *multierror.Error
	for _, h := range handles {
		h.Kick()
		if err := h.release(); err != nil {
			result = multierror.Append(result, fmt.Errorf("release %s: %w", h.path, err))
		}
	}
	return result.ErrorOrNil()
}
