//go:build linux && amd64

package usbfs

import (
	"errors"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/pkg"
)

// Known-good amd64 values from include/uapi/linux/usbdevice_fs.h.
func TestIoctlNumbers(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"SUBMITURB", ioctlSubmitURB, 0x8038550a},
		{"DISCARDURB", ioctlDiscardURB, 0x0000550b},
		{"REAPURB", ioctlReapURB, 0x4008550c},
		{"REAPURBNDELAY", ioctlReapURBNDelay, 0x4008550d},
		{"CLAIMINTERFACE", ioctlClaimInterface, 0x8004550f},
		{"RELEASEINTERFACE", ioctlReleaseInterface, 0x80045510},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %#x, want %#x", tt.name, tt.got, tt.want)
		}
	}
}

// The URB mirror must keep the kernel's struct usbdevfs_urb size; the
// SUBMITURB ioctl number embeds it.
func TestURBSize(t *testing.T) {
	if size := unsafe.Sizeof(URB{}); size != 56 {
		t.Errorf("sizeof(URB) = %d, want 56", size)
	}
}

func TestURBErr(t *testing.T) {
	tests := []struct {
		name   string
		status int32
		want   error
	}{
		{"success", 0, nil},
		{"device gone", -int32(unix.ENODEV), pkg.ErrNoDevice},
		{"discarded", -int32(unix.ENOENT), pkg.ErrNoDevice},
		{"timed out", -int32(unix.ETIMEDOUT), pkg.ErrTimeout},
		{"stalled", -int32(unix.EPIPE), unix.EPIPE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := URB{Status: tt.status}
			err := u.Err()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Err() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Err() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSetBuffer(t *testing.T) {
	var u URB

	data := []byte{1, 2, 3}
	u.SetBuffer(data)
	if u.Buffer != unsafe.Pointer(&data[0]) {
		t.Error("Buffer does not point at the slice data")
	}
	if u.BufferLength != 3 {
		t.Errorf("BufferLength = %d, want 3", u.BufferLength)
	}

	// Zero-length terminator packets carry no buffer.
	u.SetBuffer(nil)
	if u.Buffer != nil || u.BufferLength != 0 {
		t.Errorf("SetBuffer(nil) left Buffer=%v BufferLength=%d", u.Buffer, u.BufferLength)
	}
}
