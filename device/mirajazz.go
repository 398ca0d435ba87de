// SPDX-License-Identifier: Unlicense OR MIT

//go:build linux

package device

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"time"

	"golang.org/x/image/bmp"
)

// MirajazzDevice drives a registry-described panel over a raw hidraw
// node. Unlike Elgato devices, every fact about the hardware (layout,
// wire protocol revision, image format, button index remapping) comes
// from its Definition rather than a small built-in table, since the
// Mirajazz ecosystem is a sprawl of relabeled clone boards.
type MirajazzDevice struct {
	conn   *hidConn
	def    *Definition
	serial string
}

// MirajazzSupports reports whether vid/pid has a registry entry.
func MirajazzSupports(reg *Registry, vid, pid uint16) bool {
	return reg != nil && reg.IsSupported(vid, pid)
}

// OpenMirajazz claims path as a registry-described device. usbSerial is
// the serial the kernel reports; when the definition's ForceSerial quirk
// is set, the effective serial is derived from it plus the VID/PID so
// that boards which all share one USB serial can still be told apart in
// config device bindings.
func OpenMirajazz(path string, reg *Registry, vid, pid uint16, usbSerial string) (*MirajazzDevice, error) {
	def, ok := reg.FindByVIDPID(vid, pid)
	if !ok {
		return nil, newErr(KindConfiguration, "OpenMirajazz", fmt.Errorf("device %04x:%04x not found in registry (known: %v)", vid, pid, reg.Known()))
	}
	conn, err := openHidConn(path)
	if err != nil {
		return nil, err
	}
	serial := usbSerial
	if def.Quirks.ForceSerial {
		serial = fmt.Sprintf("%s-%04X%04X", usbSerial, vid, pid)
	}
	return &MirajazzDevice{conn: conn, def: def, serial: serial}, nil
}

func (d *MirajazzDevice) SerialNumber() (string, error) { return d.serial, nil }

func (d *MirajazzDevice) FirmwareVersion() (string, error) {
	return "", newErr(KindUnsupported, "FirmwareVersion", fmt.Errorf("firmware query not implemented for %s", d.def.Info.HumanName))
}

func (d *MirajazzDevice) Manufacturer() string {
	if d.def.Info.Manufacturer != "" {
		return d.def.Info.Manufacturer
	}
	return "Unknown"
}

func (d *MirajazzDevice) KindName() string { return d.def.Info.HumanName }
func (d *MirajazzDevice) ButtonCount() uint8 {
	return uint8(d.def.Layout.KeyCount())
}
func (d *MirajazzDevice) ButtonLayout() (int, int) { return d.def.Layout.Rows, d.def.Layout.Cols }
func (d *MirajazzDevice) EncoderCount() int        { return d.def.Layout.EncoderCount }
func (d *MirajazzDevice) HasScreen() bool          { return true }
func (d *MirajazzDevice) ButtonImageSize() (uint16, uint16) {
	return uint16(d.def.ImageFormat.Size[0]), uint16(d.def.ImageFormat.Size[1])
}

func (d *MirajazzDevice) Reset() error {
	if err := d.SetBrightness(100); err != nil {
		return err
	}
	return d.ClearAllButtonImages()
}

func (d *MirajazzDevice) SetBrightness(percent uint8) error {
	if percent > 100 {
		return newErr(KindInvalidParameter, "SetBrightness", fmt.Errorf("brightness %d out of range [0,100]", percent))
	}
	return d.conn.write([]byte{0x00, 0x01, percent})
}

func (d *MirajazzDevice) SetButtonImage(buttonIdx uint8, img image.Image) error {
	if buttonIdx >= d.ButtonCount() {
		return newErr(KindInvalidParameter, "SetButtonImage", fmt.Errorf("button %d out of range [0,%d)", buttonIdx, d.ButtonCount()))
	}
	native := d.def.OpendeckToDevice(int(buttonIdx))
	format := d.def.ImageFormatForButton(native)

	prepared := applyTransform(img, format.Rotation, format.Mirror)
	var buf bytes.Buffer
	switch format.Mode {
	case ImageJPEG:
		if err := jpeg.Encode(&buf, prepared, &jpeg.Options{Quality: 90}); err != nil {
			return newErr(KindIO, "SetButtonImage", fmt.Errorf("encode jpeg: %w", err))
		}
	default:
		if err := bmp.Encode(&buf, prepared); err != nil {
			return newErr(KindIO, "SetButtonImage", fmt.Errorf("encode bmp: %w", err))
		}
	}
	return writeImagePackets(d.conn, uint8(native), buf.Bytes())
}

func (d *MirajazzDevice) ClearButtonImage(buttonIdx uint8) error {
	if buttonIdx >= d.ButtonCount() {
		return newErr(KindInvalidParameter, "ClearButtonImage", fmt.Errorf("button %d out of range [0,%d)", buttonIdx, d.ButtonCount()))
	}
	native := d.def.OpendeckToDevice(int(buttonIdx))
	return writeImagePackets(d.conn, uint8(native), nil)
}

func (d *MirajazzDevice) ClearAllButtonImages() error {
	for i := uint8(0); i < d.ButtonCount(); i++ {
		if err := d.ClearButtonImage(i); err != nil {
			return err
		}
	}
	return nil
}

func (d *MirajazzDevice) Flush() error {
	return d.conn.write([]byte{0x00, 0x03})
}

func (d *MirajazzDevice) Shutdown() error {
	return d.conn.write([]byte{0x00, 0x04})
}

func (d *MirajazzDevice) Sleep() error {
	return d.conn.write([]byte{0x00, 0x05})
}

func (d *MirajazzDevice) KeepAlive() {
	_ = d.conn.write([]byte{0x00, 0x06})
}

func (d *MirajazzDevice) Reader() (Reader, error) {
	return &mirajazzReader{conn: d.conn, def: d.def, buttons: d.ButtonCount()}, nil
}

// applyTransform rotates and mirrors img per the registry's per-button
// format before encoding, since the physical panel may mount its LCD
// rotated relative to how the config author thinks about it.
func applyTransform(img image.Image, rot Rotation, mir Mirror) image.Image {
	out := rotate(img, rot)
	return mirror(out, mir)
}

func rotate(img image.Image, rot Rotation) image.Image {
	if rot == Rot0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var dst *image.NRGBA
	if rot == Rot90 || rot == Rot270 {
		dst = image.NewNRGBA(image.Rect(0, 0, h, w))
	} else {
		dst = image.NewNRGBA(image.Rect(0, 0, w, h))
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := img.At(b.Min.X+x, b.Min.Y+y)
			switch rot {
			case Rot90:
				dst.Set(h-1-y, x, c)
			case Rot180:
				dst.Set(w-1-x, h-1-y, c)
			case Rot270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}

func mirror(img image.Image, mir Mirror) image.Image {
	if mir == MirrorNone {
		return img
	}
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	flipX := mir == MirrorX || mir == MirrorBoth
	flipY := mir == MirrorY || mir == MirrorBoth
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sx, sy := x, y
			if flipX {
				sx = w - 1 - x
			}
			if flipY {
				sy = h - 1 - y
			}
			out.Set(b.Min.X+x, b.Min.Y+y, dst.At(b.Min.X+sx, b.Min.Y+sy))
		}
	}
	return out
}

type mirajazzReader struct {
	conn    *hidConn
	def     *Definition
	buttons uint8
	state   []bool
}

func (r *mirajazzReader) Read(timeout time.Duration) ([]StateUpdate, error) {
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
	const stateOffset = 4
	for i := 0; i < int(r.buttons) && stateOffset+i < len(report); i++ {
		down := report[stateOffset+i] != 0
		if down == r.state[i] {
			continue
		}
		r.state[i] = down
		// Device reports button indices starting from 1 on some
		// revisions; the kernel report we parse here is already
		// 0-indexed per i, so only the opendeck remap is needed.
		opendeck := r.def.DeviceToOpendeck(i)
		kind := ButtonUp
		if down {
			kind = ButtonDown
		}
		updates = append(updates, StateUpdate{Kind: kind, Key: uint8(opendeck)})
	}
	return updates, nil
}
