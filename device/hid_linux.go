// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// hidConn is the shared low-level transport both device families build
// on: a single /dev/hidraw* node, serialized behind a mutex because the
// kernel hidraw interface does not allow concurrent writers.
type hidConn struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func openHidConn(path string) (*hidConn, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, newErr(KindConnection, "openHidConn", fmt.Errorf("open %s: %w", path, err))
	}
	return &hidConn{f: f, path: path}, nil
}

// write sends one output report. report[0] is the HID report ID; for
// devices that don't use numbered reports it is conventionally 0.
func (c *hidConn) write(report []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.f.Write(report); err != nil {
		return newErr(KindIO, "hidConn.write", fmt.Errorf("%s: %w", c.path, err))
	}
	return nil
}

// read blocks up to timeout for one input report. A timeout of zero
// blocks indefinitely, matching Reader's contract.
func (c *hidConn) read(buf []byte, timeout time.Duration) (int, error) {
	if timeout > 0 {
		deadline := unix.NsecToTimeval(time.Now().Add(timeout).UnixNano())
		fdSet := &unix.FdSet{}
		fd := int(c.f.Fd())
		fdSet.Bits[fd/64] |= 1 << (uint(fd) % 64)
		n, err := unix.Select(fd+1, fdSet, nil, nil, &deadline)
		if err != nil {
			return 0, newErr(KindIO, "hidConn.read", fmt.Errorf("select %s: %w", c.path, err))
		}
		if n == 0 {
			return 0, nil // timed out, no report ready
		}
	}
	n, err := c.f.Read(buf)
	if err != nil {
		return 0, newErr(KindIO, "hidConn.read", fmt.Errorf("%s: %w", c.path, err))
	}
	return n, nil
}

func (c *hidConn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.f.Close()
}
