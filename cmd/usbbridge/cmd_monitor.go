//go:build linux

package main

import (
	"os/signal"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/DoraemonOS/android-system-core/adb/usb"
	"github.com/DoraemonOS/android-system-core/pkg"
)

// logUpstream is a TransportRegistry that only reports. It stands in for
// the bridge server's transport layer.
type logUpstream struct{}

func (logUpstream) RegisterTransport(h *usb.Handle, serial, devpath string, writable bool) {
	pkg.LogInfo(pkg.ComponentTransport, "transport attached",
		"path", h.Path(), "devpath", devpath, "serial", serial, "writable", writable)
}

func (logUpstream) UnregisterTransport(h *usb.Handle) {
	pkg.LogInfo(pkg.ComponentTransport, "transport detached", "path", h.Path())
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch devices attach and detach until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), unix.SIGINT, unix.SIGTERM)
		defer stop()

		d := usb.NewDiscovery(logUpstream{}, defaultPolicy, usb.Options{
			BusRoot:      flagBusRoot,
			ScanInterval: flagInterval,
		})
		if err := d.Start(ctx); err != nil {
			return err
		}
		d.Wait()
		return d.Registry().Close()
	},
}
