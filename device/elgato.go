// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/bmp"
)

// elgatoVID is Elgato Stream Deck's USB vendor ID. Every Elgato-class
// panel, regardless of model, enumerates under this VID.
const elgatoVID = 0x0fd9

// elgatoKind captures the handful of facts that vary across Stream Deck
// models and that the daemon needs: how many buttons, how they're laid
// out, and what size image each one wants.
type elgatoKind struct {
	name       string
	rows, cols int
	imageSize  [2]uint16
	hasScreen  bool
}

// elgatoKinds maps known product IDs to their shape. Unrecognized PIDs
// under the Elgato VID fall back to the most common 3x5 layout rather
// than being rejected outright, since new model numbers ship more often
// than this table gets updated.
var elgatoKinds = map[uint16]elgatoKind{
	0x0063: {name: "Stream Deck", rows: 3, cols: 5, imageSize: [2]uint16{72, 72}, hasScreen: true},
	0x006c: {name: "Stream Deck XL", rows: 4, cols: 8, imageSize: [2]uint16{96, 96}, hasScreen: true},
	0x0080: {name: "Stream Deck MK.2", rows: 3, cols: 5, imageSize: [2]uint16{72, 72}, hasScreen: true},
	0x0086: {name: "Stream Deck Plus", rows: 2, cols: 4, imageSize: [2]uint16{120, 120}, hasScreen: true},
	0x0090: {name: "Stream Deck Mini", rows: 2, cols: 3, imageSize: [2]uint16{80, 80}, hasScreen: true},
}

var elgatoDefaultKind = elgatoKind{name: "Stream Deck (generic)", rows: 3, cols: 5, imageSize: [2]uint16{72, 72}, hasScreen: true}

// ElgatoSupports reports whether vid identifies an Elgato-class panel.
func ElgatoSupports(vid, _ uint16) bool {
	return vid == elgatoVID
}

// ElgatoDevice drives an Elgato-class panel over a raw hidraw node.
type ElgatoDevice struct {
	baseDevice
	conn   *hidConn
	kind   elgatoKind
	serial string
}

// OpenElgato claims path as an Elgato-class device already identified by
// ElgatoSupports.
func OpenElgato(path string, pid uint16, serial string) (*ElgatoDevice, error) {
	conn, err := openHidConn(path)
	if err != nil {
		return nil, err
	}
	kind, ok := elgatoKinds[pid]
	if !ok {
		kind = elgatoDefaultKind
	}
	return &ElgatoDevice{conn: conn, kind: kind, serial: serial}, nil
}

func (d *ElgatoDevice) SerialNumber() (string, error) { return d.serial, nil }

func (d *ElgatoDevice) FirmwareVersion() (string, error) {
	return "", newErr(KindUnsupported, "FirmwareVersion", fmt.Errorf("firmware query not implemented for %s", d.kind.name))
}

func (d *ElgatoDevice) Manufacturer() string { return "Elgato" }
func (d *ElgatoDevice) KindName() string     { return d.kind.name }
func (d *ElgatoDevice) ButtonCount() uint8   { return uint8(d.kind.rows * d.kind.cols) }
func (d *ElgatoDevice) ButtonLayout() (int, int) { return d.kind.rows, d.kind.cols }
func (d *ElgatoDevice) EncoderCount() int        { return 0 }
func (d *ElgatoDevice) HasScreen() bool          { return d.kind.hasScreen }
func (d *ElgatoDevice) ButtonImageSize() (uint16, uint16) {
	return d.kind.imageSize[0], d.kind.imageSize[1]
}

func (d *ElgatoDevice) Reset() error {
	return d.conn.write([]byte{0x03, 0x02})
}

func (d *ElgatoDevice) SetBrightness(percent uint8) error {
	if percent > 100 {
		return newErr(KindInvalidParameter, "SetBrightness", fmt.Errorf("brightness %d out of range [0,100]", percent))
	}
	return d.conn.write([]byte{0x03, 0x08, percent})
}

// SetButtonImage encodes img as BMP, the format every Stream Deck
// generation accepts, and writes it as a sequence of output reports.
func (d *ElgatoDevice) SetButtonImage(buttonIdx uint8, img image.Image) error {
	if buttonIdx >= d.ButtonCount() {
		return newErr(KindInvalidParameter, "SetButtonImage", fmt.Errorf("button %d out of range [0,%d)", buttonIdx, d.ButtonCount()))
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return newErr(KindIO, "SetButtonImage", fmt.Errorf("encode bmp: %w", err))
	}
	return writeImagePackets(d.conn, buttonIdx, buf.Bytes())
}

func (d *ElgatoDevice) ClearButtonImage(buttonIdx uint8) error {
	if buttonIdx >= d.ButtonCount() {
		return newErr(KindInvalidParameter, "ClearButtonImage", fmt.Errorf("button %d out of range [0,%d)", buttonIdx, d.ButtonCount()))
	}
	return writeImagePackets(d.conn, buttonIdx, nil)
}

func (d *ElgatoDevice) ClearAllButtonImages() error {
	for i := uint8(0); i < d.ButtonCount(); i++ {
		if err := d.ClearButtonImage(i); err != nil {
			return err
		}
	}
	return nil
}

func (d *ElgatoDevice) Flush() error {
	return d.conn.write([]byte{0x02})
}

// Reader returns the state-update reader for this device.
func (d *ElgatoDevice) Reader() (Reader, error) {
	return &elgatoReader{conn: d.conn, buttons: d.ButtonCount()}, nil
}

// imagePacketPayload is the per-report payload size left after the
// 8-byte header every generation of the protocol uses (report id, page
// index, continuation flag, payload length, button index).
const imagePacketPayload = 1024

// writeImagePackets splits data across fixed-size output reports with a
// small per-packet header identifying the target button, the page
// number, and whether more pages follow. An empty data clears the
// button with a single zero-length final packet.
func writeImagePackets(conn *hidConn, buttonIdx uint8, data []byte) error {
	page := 0
	for offset := 0; offset == 0 || offset < len(data); offset += imagePacketPayload {
		end := offset + imagePacketPayload
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]
		last := end >= len(data)

		report := make([]byte, 8+len(chunk))
		report[0] = 0x02
		report[1] = buttonIdx
		if last {
			report[2] = 1
		}
		report[3] = byte(len(chunk))
		report[4] = byte(len(chunk) >> 8)
		report[5] = byte(page)
		report[6] = byte(page >> 8)
		copy(report[8:], chunk)
		if err := conn.write(report); err != nil {
			return err
		}
		page++
		if last {
			break
		}
	}
	return nil
}

type elgatoReader struct {
	conn    *hidConn
	buttons uint8
	state   []bool
}

func (r *elgatoReader) Read(timeout time.Duration) ([]StateUpdate, error) {
	if r.state == nil {
		r.state = make([]bool, r.buttons)
	}
	buf := make([]byte, 512)
	n, err := r.conn.read(buf, timeout)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	var updates []StateUpdate
	report := buf[:n]
	// Button state reports carry one byte per key starting at a fixed
	// offset; offset 4 matches the common Stream Deck input report
	// layout across the product line.
	const stateOffset = 4
	for i := 0; i < int(r.buttons) && stateOffset+i < len(report); i++ {
		down := report[stateOffset+i] != 0
		if down == r.state[i] {
			continue
		}
		r.state[i] = down
		kind := ButtonUp
		if down {
			kind = ButtonDown
		}
		updates = append(updates, StateUpdate{Kind: kind, Key: uint8(i)})
	}
	return updates, nil
}
