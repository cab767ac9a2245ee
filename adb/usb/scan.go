//go:build linux

package usb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/adb/usb/descriptor"
	"github.com/DoraemonOS/android-system-core/pkg"
)

// Scanner enumerates the usbfs tree looking for devices whose descriptors
// satisfy a policy. It is stateless; the registry remembers what has been
// seen across passes.
type Scanner struct {
	busRoot string
	policy  Policy
}

// NewScanner returns a scanner over busRoot (DefaultBusRoot when empty)
// accepting interfaces that satisfy policy.
func NewScanner(busRoot string, policy Policy) *Scanner {
	if busRoot == "" {
		busRoot = DefaultBusRoot
	}
	return &Scanner{busRoot: busRoot, policy: policy}
}

// Scan walks every bus directory under the root and probes each device node
// for which known returns false. Unreadable directories and nodes are
// skipped; a missing bus root yields no candidates and no error, since the
// tree legitimately vanishes when the last device unplugs.
func (s *Scanner) Scan(known func(path string) bool) []Candidate {
	buses, err := os.ReadDir(s.busRoot)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			pkg.LogWarn(pkg.ComponentScan, "cannot read bus root",
				"root", s.busRoot, "error", err)
		}
		return nil
	}

	var found []Candidate
	for _, bus := range buses {
		if !bus.IsDir() || !allDigits(bus.Name()) {
			continue
		}
		busDir := filepath.Join(s.busRoot, bus.Name())
		devs, err := os.ReadDir(busDir)
		if err != nil {
			pkg.LogDebug(pkg.ComponentScan, "cannot read bus directory",
				"dir", busDir, "error", err)
			continue
		}
		for _, dev := range devs {
			if dev.IsDir() || !allDigits(dev.Name()) {
				continue
			}
			path := filepath.Join(busDir, dev.Name())
			if known != nil && known(path) {
				continue
			}
			c, err := s.probe(path)
			if err != nil {
				pkg.LogDebug(pkg.ComponentScan, "device rejected",
					"path", path, "error", err)
				continue
			}
			found = append(found, c)
		}
	}
	return found
}

// Enumerate performs one scan pass with no registry, returning every device
// on the bus that satisfies policy. Intended for one-shot tooling; the
// discovery loop drives a Scanner directly.
func Enumerate(busRoot string, policy Policy) []Candidate {
	return NewScanner(busRoot, policy).Scan(nil)
}

// probe reads the device's descriptor blob and matches it against the
// policy. usbfs serves the cached descriptors as the readable prefix of
// every device node, so no ioctl is needed here.
func (s *Scanner) probe(path string) (Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	buf := make([]byte, descriptor.MaxBlobSize)
	n, err := f.Read(buf)
	if err != nil {
		return Candidate{}, fmt.Errorf("read descriptors: %w", err)
	}

	m, err := descriptor.FindBulkInterface(buf[:n], s.policy)
	if err != nil {
		return Candidate{}, err
	}

	devpath := charDevPath(f)
	pkg.LogDebug(pkg.ComponentScan, "found matching device",
		"path", path, "devpath", devpath,
		"vendor", fmt.Sprintf("%04x", m.VendorID),
		"product", fmt.Sprintf("%04x", m.ProductID))

	return Candidate{
		Path:        path,
		DevPath:     devpath,
		VendorID:    m.VendorID,
		ProductID:   m.ProductID,
		EndpointIn:  m.EndpointIn,
		EndpointOut: m.EndpointOut,
		Interface:   m.Interface,
		SerialIndex: m.SerialIndex,
		ZeroMask:    m.ZeroMask,
	}, nil
}

// charDevPath resolves the open device node to its bus-topology name via
// the /sys/dev/char registry and formats it as the "usb:<name>" secondary
// path. Returns "" when any step fails; the secondary path is advisory.
func charDevPath(f *os.File) string {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return ""
	}
	link := fmt.Sprintf("/sys/dev/char/%d:%d",
		unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
	target, err := os.Readlink(link)
	if err != nil {
		return ""
	}
	return "usb:" + filepath.Base(target)
}

// readSerial fetches the serial attribute for the device named by the
// secondary path. Absence is normal; many devices publish no serial.
func readSerial(devpath string, index uint8) string {
	if devpath == "" || index == 0 {
		return ""
	}
	name := strings.TrimPrefix(devpath, "usb:")
	raw, err := os.ReadFile(filepath.Join(sysfsSerialDir, name, "serial"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
