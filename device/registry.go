// SPDX-License-Identifier: Unlicense OR MIT

package device

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ImageMode is the wire encoding a button image is sent in.
type ImageMode string

const (
	ImageBMP  ImageMode = "bmp"
	ImageJPEG ImageMode = "jpeg"
)

// Rotation is a button image rotation applied before encoding.
type Rotation int

const (
	Rot0 Rotation = iota
	Rot90
	Rot180
	Rot270
)

// Mirror is a button image mirroring applied before encoding.
type Mirror string

const (
	MirrorNone Mirror = "none"
	MirrorX    Mirror = "x"
	MirrorY    Mirror = "y"
	MirrorBoth Mirror = "both"
)

// ImageFormat describes how one button's image must be prepared for the
// wire: its pixel size, rotation, mirroring and container format.
type ImageFormat struct {
	Mode     ImageMode `json:"mode"`
	Size     [2]int    `json:"size"`
	Rotation Rotation  `json:"rotation"`
	Mirror   Mirror    `json:"mirror"`
}

// Layout describes a panel's physical button/encoder grid.
type Layout struct {
	Rows         int `json:"rows"`
	Cols         int `json:"cols"`
	EncoderCount int `json:"encoder_count"`
}

func (l Layout) KeyCount() int { return l.Rows * l.Cols }

// Quirks captures device-specific deviations the registry encodes so
// the daemon never special-cases a model by name.
type Quirks struct {
	// ForceSerial appends the VID:PID to the USB serial. Some clone
	// boards ship every unit with an identical (or empty) USB serial
	// string, which would otherwise collide in the config's device
	// binding.
	ForceSerial bool `json:"force_serial"`
}

// Protocol pins the wire protocol revision a device definition targets,
// since the report format changed between hardware generations.
type Protocol struct {
	Version            int  `json:"version"`
	SupportsBothStates bool `json:"supports_both_states"`
}

// Info is cosmetic metadata about a device definition.
type Info struct {
	Manufacturer string `json:"manufacturer"`
	HumanName    string `json:"human_name"`
}

// Definition is one entry in the device registry: everything needed to
// talk to a specific Mirajazz-class board once its VID/PID is matched.
type Definition struct {
	VID, PID    uint16
	Info        Info                  `json:"info"`
	Layout      Layout                `json:"layout"`
	Protocol    Protocol              `json:"protocol"`
	Quirks      Quirks                `json:"quirks"`
	ImageFormat ImageFormat           `json:"image_format"`
	// ButtonFormats overrides ImageFormat for specific device-native
	// button indices (LCD strips with a different aspect ratio than
	// the grid buttons, for instance).
	ButtonFormats map[int]ImageFormat `json:"button_formats,omitempty"`
	// ButtonMap maps an opendeck logical button index to the device's
	// native wire index, for boards that number keys in a different
	// order than they're laid out physically. Absent entries are the
	// identity mapping.
	ButtonMap map[int]int `json:"button_map,omitempty"`
}

// registryFile is the on-disk JSON shape: one file holds one device's
// VID/PID plus its Definition fields, keyed loosely so the file can be
// dropped in whole from a vendor-supplied registry.
type registryFile struct {
	VID string `json:"vid"`
	PID string `json:"pid"`
	Definition
}

// ImageFormatForButton resolves the format for a device-native button
// index, falling back to the definition's default when no per-button
// override exists.
func (d *Definition) ImageFormatForButton(nativeIdx int) ImageFormat {
	if f, ok := d.ButtonFormats[nativeIdx]; ok {
		return f
	}
	return d.ImageFormat
}

// OpendeckToDevice maps a logical button index to the device's native
// wire index.
func (d *Definition) OpendeckToDevice(idx int) int {
	if mapped, ok := d.ButtonMap[idx]; ok {
		return mapped
	}
	return idx
}

// DeviceToOpendeck is the inverse of OpendeckToDevice.
func (d *Definition) DeviceToOpendeck(nativeIdx int) int {
	for logical, native := range d.ButtonMap {
		if native == nativeIdx {
			return logical
		}
	}
	return nativeIdx
}

// Registry indexes device definitions by (vid, pid). Entries found in
// later search paths override entries with the same key found in
// earlier ones, so a user can drop an override file in their own config
// directory without editing the bundled registry.
type Registry struct {
	byKey map[[2]uint16]*Definition
}

// LoadRegistry reads every *.json file in each of paths, in order,
// later paths overriding earlier ones on VID/PID collision.
func LoadRegistry(paths []string) (*Registry, error) {
	r := &Registry{byKey: make(map[[2]uint16]*Definition)}
	found := false
	for _, dir := range paths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // a missing search path is not fatal; later ones may exist
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				names = append(names, e.Name())
			}
		}
		slices.Sort(names)
		for _, name := range names {
			def, err := loadRegistryFile(filepath.Join(dir, name))
			if err != nil {
				return nil, newErr(KindConfiguration, "LoadRegistry", err)
			}
			r.byKey[[2]uint16{def.VID, def.PID}] = def
			found = true
		}
	}
	if !found {
		return nil, newErr(KindConfiguration, "LoadRegistry", fmt.Errorf("no registry entries found in any of %v", paths))
	}
	return r, nil
}

func loadRegistryFile(path string) (*Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var rf registryFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var vid, pid uint16
	if _, err := fmt.Sscanf(rf.VID, "%04x", &vid); err != nil {
		return nil, fmt.Errorf("%s: bad vid %q: %w", path, rf.VID, err)
	}
	if _, err := fmt.Sscanf(rf.PID, "%04x", &pid); err != nil {
		return nil, fmt.Errorf("%s: bad pid %q: %w", path, rf.PID, err)
	}
	def := rf.Definition
	def.VID, def.PID = vid, pid
	return &def, nil
}

// FindByVIDPID looks up a device definition by hardware identity.
func (r *Registry) FindByVIDPID(vid, pid uint16) (*Definition, bool) {
	def, ok := r.byKey[[2]uint16{vid, pid}]
	return def, ok
}

// IsSupported reports whether vid/pid has a registry entry.
func (r *Registry) IsSupported(vid, pid uint16) bool {
	_, ok := r.FindByVIDPID(vid, pid)
	return ok
}

// Known returns every vid:pid pair the registry holds a definition for,
// sorted for stable diagnostics output regardless of override order.
func (r *Registry) Known() []string {
	keys := maps.Keys(r.byKey)
	slices.SortFunc(keys, func(a, b [2]uint16) bool {
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%04x:%04x", k[0], k[1])
	}
	return out
}
