package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/DoraemonOS/android-system-core/pkg"
)

// Descriptor types from the USB specification (ch9).
const (
	TypeDevice              = 0x01
	TypeConfig              = 0x02
	TypeString              = 0x03
	TypeInterface           = 0x04
	TypeEndpoint            = 0x05
	TypeSSEndpointCompanion = 0x30
)

// Fixed descriptor sizes in bytes.
const (
	DeviceSize              = 18
	ConfigSize              = 9
	InterfaceSize           = 9
	EndpointSize            = 7
	SSEndpointCompanionSize = 6
)

// Endpoint address and attribute encodings.
const (
	// EndpointDirIn is the direction bit in bEndpointAddress; set means
	// device-to-host.
	EndpointDirIn = 0x80

	// XferBulk is the bmAttributes value of a bulk endpoint.
	XferBulk = 0x02
)

// MaxBlobSize bounds the raw descriptor blob read from a device node.
const MaxBlobSize = 4096

var le = binary.LittleEndian

// Policy decides whether an interface identified by the given
// vendor/product/class/subclass/protocol tuple is the one the caller wants
// to drive. It is supplied by the transport's owner; this package attaches
// no meaning of its own to the tuple.
type Policy func(vendorID, productID uint16, class, subclass, protocol uint8) bool

// Device is the fixed-size device descriptor header, reduced to the fields
// the transport needs.
type Device struct {
	VendorID    uint16
	ProductID   uint16
	SerialIndex uint8
}

// Interface is a single interface record from the configuration tree.
type Interface struct {
	Number       uint8
	NumEndpoints uint8
	Class        uint8
	SubClass     uint8
	Protocol     uint8
}

// Endpoint is a single endpoint record.
type Endpoint struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
}

// Match is a policy-accepted bulk interface with its endpoint pair split by
// direction. ZeroMask is nonzero only for protocol 1 interfaces, where a
// write whose length satisfies len&ZeroMask == 0 must be followed by a
// zero-length terminator packet.
type Match struct {
	VendorID    uint16
	ProductID   uint16
	SerialIndex uint8
	Interface   uint8
	EndpointIn  uint8
	EndpointOut uint8
	ZeroMask    uint32
}

// In returns true if the endpoint's direction bit indicates device-to-host.
func (e Endpoint) In() bool {
	return e.Address&EndpointDirIn != 0
}

// parseDevice decodes the device descriptor header at the start of buf.
// The caller guarantees len(buf) >= DeviceSize.
func parseDevice(buf []byte) (Device, error) {
	if buf[0] != DeviceSize || buf[1] != TypeDevice {
		return Device{}, fmt.Errorf("device header %d/%#02x: %w",
			buf[0], buf[1], pkg.ErrDescriptorTypeMismatch)
	}
	return Device{
		VendorID:    le.Uint16(buf[8:]),
		ProductID:   le.Uint16(buf[10:]),
		SerialIndex: buf[16],
	}, nil
}

// checkConfig validates the configuration descriptor header at the start of
// buf. Only the length and type tag matter; the walk uses per-record length
// prefixes from here on. The caller guarantees len(buf) >= ConfigSize.
func checkConfig(buf []byte) error {
	if buf[0] != ConfigSize || buf[1] != TypeConfig {
		return fmt.Errorf("config header %d/%#02x: %w",
			buf[0], buf[1], pkg.ErrDescriptorTypeMismatch)
	}
	return nil
}

// parseInterface decodes an interface record. The caller guarantees
// len(buf) >= InterfaceSize.
func parseInterface(buf []byte) Interface {
	return Interface{
		Number:       buf[2],
		NumEndpoints: buf[4],
		Class:        buf[5],
		SubClass:     buf[6],
		Protocol:     buf[7],
	}
}

// parseEndpoint decodes an endpoint record and validates its header tag.
func parseEndpoint(buf []byte) (Endpoint, error) {
	if len(buf) < EndpointSize || buf[0] != EndpointSize || buf[1] != TypeEndpoint {
		return Endpoint{}, pkg.ErrDescriptorTypeMismatch
	}
	return Endpoint{
		Address:       buf[2],
		Attributes:    buf[3],
		MaxPacketSize: le.Uint16(buf[4:]),
	}, nil
}

// skipCompanion returns the number of bytes to skip at buf for an optional
// SuperSpeed endpoint companion record. Companions are recognized purely by
// their fixed size and type tag and are never validated further.
func skipCompanion(buf []byte) int {
	if len(buf) >= 2 && buf[0] == SSEndpointCompanionSize && buf[1] == TypeSSEndpointCompanion {
		return SSEndpointCompanionSize
	}
	return 0
}

// FindBulkInterface walks a raw descriptor blob as read from a usbfs device
// node: a device descriptor, a configuration descriptor, then a sequence of
// type-tagged length-prefixed records. It returns the first interface that
// declares exactly two endpoints, is accepted by the policy, and carries two
// bulk endpoints (one per direction).
//
// Malformed input is rejected with pkg.ErrDescriptorTooShort or
// pkg.ErrDescriptorTypeMismatch; a well-formed blob with no acceptable
// interface is rejected with pkg.ErrNoBulkInterface. Rejections are per
// device and never fatal to a bus scan.
func FindBulkInterface(buf []byte, policy Policy) (Match, error) {
	if len(buf) < DeviceSize+ConfigSize {
		return Match{}, fmt.Errorf("blob is %d bytes: %w",
			len(buf), pkg.ErrDescriptorTooShort)
	}

	dev, err := parseDevice(buf)
	if err != nil {
		return Match{}, err
	}
	off := DeviceSize

	if err := checkConfig(buf[off:]); err != nil {
		return Match{}, err
	}
	off += ConfigSize

	// Walk the remaining records by their length prefix looking for the
	// target interface. Records other than interfaces are stepped over.
	for off < len(buf) {
		if len(buf)-off < 2 {
			return Match{}, fmt.Errorf("truncated record at %d: %w",
				off, pkg.ErrDescriptorTooShort)
		}
		length := int(buf[off])
		typ := buf[off+1]

		if length < 2 {
			return Match{}, fmt.Errorf("record length %d at %d: %w",
				length, off, pkg.ErrDescriptorTypeMismatch)
		}

		if typ != TypeInterface {
			off += length
			continue
		}

		if length != InterfaceSize || len(buf)-off < InterfaceSize {
			return Match{}, fmt.Errorf("interface record length %d: %w",
				length, pkg.ErrDescriptorTypeMismatch)
		}
		iface := parseInterface(buf[off:])
		off += length

		if iface.NumEndpoints != 2 ||
			!policy(dev.VendorID, dev.ProductID, iface.Class, iface.SubClass, iface.Protocol) {
			continue
		}

		// The two endpoint records follow the interface immediately, each
		// optionally trailed by a SuperSpeed companion record that is
		// skipped without inspection.
		ep1, err := parseEndpoint(buf[off:])
		if err != nil {
			return Match{}, err
		}
		off += EndpointSize
		off += skipCompanion(buf[off:])

		ep2, err := parseEndpoint(buf[off:])
		if err != nil {
			return Match{}, err
		}
		off += EndpointSize
		off += skipCompanion(buf[off:])

		// Both endpoints must be bulk. A non-bulk pair is not an error;
		// another interface later in the configuration may still match.
		if ep1.Attributes != XferBulk || ep2.Attributes != XferBulk {
			continue
		}

		m := Match{
			VendorID:    dev.VendorID,
			ProductID:   dev.ProductID,
			SerialIndex: dev.SerialIndex,
			Interface:   iface.Number,
		}
		if ep1.In() {
			m.EndpointIn = ep1.Address
			m.EndpointOut = ep2.Address
		} else {
			m.EndpointIn = ep2.Address
			m.EndpointOut = ep1.Address
		}

		// Protocol 1 requires zero-length terminators after writes that
		// are an exact multiple of the packet size.
		if iface.Protocol == 0x01 {
			in := ep1
			if ep2.In() {
				in = ep2
			}
			m.ZeroMask = uint32(in.MaxPacketSize) - 1
		}
		return m, nil
	}

	return Match{}, pkg.ErrNoBulkInterface
}
