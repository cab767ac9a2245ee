//go:build linux

package usb

import (
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/adb/usb/usbfs"
)

// fakeOps emulates the usbfs surface in memory. Submitted URBs sit in a
// pending set until the test completes or discards them, at which point
// they become reapable and any parked completion wait is released.
type fakeOps struct {
	mu sync.Mutex

	nextFD    int
	openErr   map[int]error // keyed by open flags
	claimErr  error
	submitErr error

	pending   []*usbfs.URB
	reapable  []*usbfs.URB
	submitted []*usbfs.URB // every submission, in order

	claimed  []uint32
	released []uint32
	closed   []int

	// wakeCh releases WaitCompletion. Completions and Wake both signal it.
	wakeCh chan struct{}
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		nextFD:  100,
		openErr: make(map[int]error),
		wakeCh:  make(chan struct{}, 64),
	}
}

func (f *fakeOps) signal() {
	select {
	case f.wakeCh <- struct{}{}:
	default:
	}
}

func (f *fakeOps) Open(path string, flags int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openErr[flags]; err != nil {
		return -1, err
	}
	f.nextFD++
	return f.nextFD, nil
}

func (f *fakeOps) Close(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, fd)
	return nil
}

func (f *fakeOps) ClaimInterface(fd int, iface uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claimed = append(f.claimed, iface)
	return nil
}

func (f *fakeOps) ReleaseInterface(fd int, iface uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, iface)
	return nil
}

func (f *fakeOps) SubmitURB(fd int, u *usbfs.URB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.pending = append(f.pending, u)
	f.submitted = append(f.submitted, u)
	return nil
}

func (f *fakeOps) DiscardURB(fd int, u *usbfs.URB) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pending {
		if p == u {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			u.Status = -int32(unix.ENOENT)
			f.reapable = append(f.reapable, u)
			f.signal()
			return nil
		}
	}
	return unix.EINVAL
}

func (f *fakeOps) ReapURBNoWait(fd int) (*usbfs.URB, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reapable) == 0 {
		return nil, unix.EAGAIN
	}
	u := f.reapable[0]
	f.reapable = f.reapable[1:]
	return u, nil
}

func (f *fakeOps) NewWakeFD() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextFD++
	return f.nextFD, nil
}

func (f *fakeOps) Wake(wakefd int) error {
	f.signal()
	return nil
}

func (f *fakeOps) WaitCompletion(devfd, wakefd int) error {
	f.mu.Lock()
	ready := len(f.reapable) > 0
	f.mu.Unlock()
	if ready {
		return nil
	}
	<-f.wakeCh
	return nil
}

// complete moves a pending URB to the reapable set with the given outcome.
func (f *fakeOps) complete(t *testing.T, u *usbfs.URB, status, actual int32) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.pending {
		if p == u {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			u.Status = status
			u.ActualLength = actual
			f.reapable = append(f.reapable, u)
			f.signal()
			return
		}
	}
	t.Fatalf("complete: urb for endpoint %#x not pending", u.Endpoint)
}

// waitSubmitted blocks until at least n URBs have ever been submitted and
// returns the n-th one.
func (f *fakeOps) waitSubmitted(t *testing.T, n int) *usbfs.URB {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.submitted) >= n {
			u := f.submitted[n-1]
			f.mu.Unlock()
			return u
		}
		f.mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for submission %d", n)
	return nil
}

func (f *fakeOps) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// fakeUpstream records transport notifications.
type fakeUpstream struct {
	mu           sync.Mutex
	registered   []*Handle
	unregistered []*Handle
}

func (u *fakeUpstream) RegisterTransport(h *Handle, serial, devpath string, writable bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.registered = append(u.registered, h)
}

func (u *fakeUpstream) UnregisterTransport(h *Handle) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.unregistered = append(u.unregistered, h)
}

func (u *fakeUpstream) counts() (reg, unreg int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.registered), len(u.unregistered)
}

// newTestHandle builds a writable handle over a fake, registered in a fresh
// registry so Kick's upstream path is exercised realistically.
func newTestHandle(t *testing.T, f *fakeOps, up *fakeUpstream, opts Options) *Handle {
	t.Helper()
	reg := newRegistry(f, up, opts)
	reg.Register(Candidate{
		Path:        "/dev/bus/usb/001/002",
		EndpointIn:  0x81,
		EndpointOut: 0x01,
		Interface:   1,
		ZeroMask:    0x3f,
	})
	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.registered) != 1 {
		t.Fatal("device did not register")
	}
	return up.registered[0]
}
