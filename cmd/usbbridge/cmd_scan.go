//go:build linux

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DoraemonOS/android-system-core/adb/usb"
	"github.com/DoraemonOS/android-system-core/pkg/linux/usbid"
)

// defaultPolicy matches the vendor-specific bulk debug interface: class
// 0xff, subclass 0x42, protocol 0 or 1.
func defaultPolicy(vendor, product uint16, class, subclass, protocol uint8) bool {
	return class == 0xff && subclass == 0x42 && protocol <= 1
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List matching devices currently on the bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		found := usb.Enumerate(flagBusRoot, defaultPolicy)
		if len(found) == 0 {
			fmt.Println("no matching devices")
			return nil
		}

		db := usbid.Open()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PATH\tDEVPATH\tID\tNAME\tEP IN\tEP OUT\tZERO")
		for _, c := range found {
			fmt.Fprintf(w, "%s\t%s\t%04x:%04x\t%s\t%#02x\t%#02x\t%v\n",
				c.Path, c.DevPath, c.VendorID, c.ProductID,
				db.Describe(c.VendorID, c.ProductID),
				c.EndpointIn, c.EndpointOut, c.ZeroMask != 0)
		}
		return w.Flush()
	},
}
