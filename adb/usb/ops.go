//go:build linux

package usb

import (
	"github.com/DoraemonOS/android-system-core/adb/usb/usbfs"
)

// usbOps is the kernel capability surface the registry and handles consume.
// Production code uses sysOps; tests substitute a fake so transfer and
// lifecycle semantics can be exercised without a device.
type usbOps interface {
	Open(path string, flags int) (int, error)
	Close(fd int) error
	ClaimInterface(fd int, iface uint32) error
	ReleaseInterface(fd int, iface uint32) error
	SubmitURB(fd int, u *usbfs.URB) error
	DiscardURB(fd int, u *usbfs.URB) error
	ReapURBNoWait(fd int) (*usbfs.URB, error)
	NewWakeFD() (int, error)
	Wake(wakefd int) error
	WaitCompletion(devfd, wakefd int) error
}

// sysOps delegates to the usbfs package.
type sysOps struct{}

func (sysOps) Open(path string, flags int) (int, error) { return usbfs.Open(path, flags) }
func (sysOps) Close(fd int) error                       { return usbfs.Close(fd) }
func (sysOps) ClaimInterface(fd int, iface uint32) error {
	return usbfs.ClaimInterface(fd, iface)
}
func (sysOps) ReleaseInterface(fd int, iface uint32) error {
	return usbfs.ReleaseInterface(fd, iface)
}
func (sysOps) SubmitURB(fd int, u *usbfs.URB) error     { return usbfs.SubmitURB(fd, u) }
func (sysOps) DiscardURB(fd int, u *usbfs.URB) error    { return usbfs.DiscardURB(fd, u) }
func (sysOps) ReapURBNoWait(fd int) (*usbfs.URB, error) { return usbfs.ReapURBNoWait(fd) }
func (sysOps) NewWakeFD() (int, error)                  { return usbfs.NewWakeFD() }
func (sysOps) Wake(wakefd int) error                    { return usbfs.Wake(wakefd) }
func (sysOps) WaitCompletion(devfd, wakefd int) error {
	return usbfs.WaitCompletion(devfd, wakefd)
}
