// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// rawInfo is the vendor/product/bus identity of a /dev/hidraw* node,
// read once at discovery time to classify the device against the
// Elgato VID or the Mirajazz registry.
type rawInfo struct {
	Bustype uint32
	Vendor  uint16
	Product uint16
}

// probeHidraw opens path read-write non-blocking just long enough to
// issue HIDIOCGRAWINFO, then closes it. A recognized device is opened
// again, read-write and blocking, by openHidConn.
func probeHidraw(path string) (rawInfo, error) {
	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return rawInfo{}, newErr(KindConnection, "probeHidraw", fmt.Errorf("open %s: %w", path, err))
	}
	defer f.Close()

	info, err := unix.IoctlGetHIDRawInfo(int(f.Fd()))
	if err != nil {
		return rawInfo{}, newErr(KindIO, "probeHidraw", fmt.Errorf("HIDIOCGRAWINFO %s: %w", path, err))
	}
	return rawInfo{
		Bustype: uint32(info.Bustype),
		Vendor:  uint16(info.Vendor),
		Product: uint16(info.Product),
	}, nil
}
