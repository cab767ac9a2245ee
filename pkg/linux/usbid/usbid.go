//go:build linux

package usbid

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists the standard locations of the usb.ids file.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// DB resolves vendor and product IDs to names. The backing file is parsed
// once, on first lookup; a missing file leaves the DB empty and every
// lookup falls back to hex formatting.
type DB struct {
	paths []string

	once     sync.Once
	vendors  map[uint16]string
	products map[uint32]string
}

// Open returns a DB over the given usb.ids paths, tried in order. With no
// arguments the standard system locations are used.
func Open(paths ...string) *DB {
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	return &DB{paths: paths}
}

func (db *DB) load() {
	db.once.Do(func() {
		db.vendors = make(map[uint16]string)
		db.products = make(map[uint32]string)
		for _, path := range db.paths {
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			db.parse(f)
			f.Close()
			return
		}
	})
}

// parse reads the usb.ids format: vendor lines are "vvvv  name", product
// lines beneath them are indented by one tab. Class tables and other
// sections later in the file never match the hex prefix and are dropped.
func (db *DB) parse(r io.Reader) {
	sc := bufio.NewScanner(r)
	var vendor uint16
	var haveVendor bool

	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if rest, indented := strings.CutPrefix(line, "\t"); indented {
			if !haveVendor {
				continue
			}
			if id, name, ok := cutIDLine(rest); ok {
				db.products[uint32(vendor)<<16|uint32(id)] = name
			}
			continue
		}

		id, name, ok := cutIDLine(line)
		if !ok {
			// A non-vendor section header (class, AT, HID...) ends the
			// vendor table.
			haveVendor = false
			continue
		}
		vendor = id
		haveVendor = true
		db.vendors[id] = name
	}
}

// cutIDLine splits a "xxxx  name" line into its 16-bit hex ID and name.
func cutIDLine(line string) (uint16, string, bool) {
	if len(line) < 6 || line[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(line[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimLeft(line[5:], " ")
	if name == "" {
		return 0, "", false
	}
	return uint16(id), name, true
}

// Vendor returns the vendor's name, or its ID in hex when unknown.
func (db *DB) Vendor(vid uint16) string {
	db.load()
	if name, ok := db.vendors[vid]; ok {
		return name
	}
	return fmt.Sprintf("%04x", vid)
}

// Product returns the product's name, or its ID in hex when unknown.
func (db *DB) Product(vid, pid uint16) string {
	db.load()
	if name, ok := db.products[uint32(vid)<<16|uint32(pid)]; ok {
		return name
	}
	return fmt.Sprintf("%04x", pid)
}

// Describe formats "vendor product" for display.
func (db *DB) Describe(vid, pid uint16) string {
	return db.Vendor(vid) + " " + db.Product(vid, pid)
}
