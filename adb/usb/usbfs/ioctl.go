//go:build linux

package usbfs

import "unsafe"

// ioctl number encoding, bit layout:
//
//	bits 0-7:   command number (nr)
//	bits 8-15:  ioctl type (type)
//	bits 16-29: argument size (size)
//	bits 30-31: direction (dir)
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2
)

const (
	iocNRBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNRShift   = 0
	iocTypeShift = iocNRShift + iocNRBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

// ioc constructs an ioctl number from direction, type, number, and size.
func ioc(dir, typ, nr, size uintptr) uintptr {
	return (dir << iocDirShift) | (typ << iocTypeShift) | (nr << iocNRShift) | (size << iocSizeShift)
}

// ior constructs a read ioctl number.
func ior(typ, nr, size uintptr) uintptr {
	return ioc(iocRead, typ, nr, size)
}

// iow constructs a write ioctl number.
func iow(typ, nr, size uintptr) uintptr {
	return ioc(iocWrite, typ, nr, size)
}

// io constructs an ioctl number with no data transfer.
func io(typ, nr uintptr) uintptr {
	return ioc(iocNone, typ, nr, 0)
}

// usbdevfs ioctl type character.
const usbdevfsType = 'U'

// usbdevfs ioctl command numbers.
const (
	nrSubmitURB        = 10
	nrDiscardURB       = 11
	nrReapURB          = 12
	nrReapURBNDelay    = 13
	nrClaimInterface   = 15
	nrReleaseInterface = 16
)

// Usbdevfs ioctl numbers. Argument sizes are taken from the Go struct
// mirrors, so the values track the platform's pointer width the same way
// the kernel's _IOC macros do.
var (
	ioctlSubmitURB        = ior(usbdevfsType, nrSubmitURB, unsafe.Sizeof(URB{}))
	ioctlDiscardURB       = io(usbdevfsType, nrDiscardURB)
	ioctlReapURB          = iow(usbdevfsType, nrReapURB, unsafe.Sizeof(uintptr(0)))
	ioctlReapURBNDelay    = iow(usbdevfsType, nrReapURBNDelay, unsafe.Sizeof(uintptr(0)))
	ioctlClaimInterface   = ior(usbdevfsType, nrClaimInterface, unsafe.Sizeof(uint32(0)))
	ioctlReleaseInterface = ior(usbdevfsType, nrReleaseInterface, unsafe.Sizeof(uint32(0)))
)
