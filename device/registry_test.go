// SPDX-License-Identifier: Unlicense OR MIT

package device

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleRegistryEntry = `{
  "vid": "0300",
  "pid": "1010",
  "info": {"manufacturer": "Mirajazz", "human_name": "N4 Mini"},
  "layout": {"rows": 2, "cols": 2, "encoder_count": 0},
  "protocol": {"version": 2, "supports_both_states": false},
  "quirks": {"force_serial": true},
  "image_format": {"mode": "jpeg", "size": [72, 72], "rotation": 0, "mirror": "none"},
  "button_map": {"0": 2, "2": 0}
}`

func writeRegistryFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadRegistryAndOverride(t *testing.T) {
	base := t.TempDir()
	override := t.TempDir()
	writeRegistryFile(t, base, "n4mini.json", sampleRegistryEntry)

	reg, err := LoadRegistry([]string{base})
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	def, ok := reg.FindByVIDPID(0x0300, 0x1010)
	if !ok {
		t.Fatal("expected device 0300:1010 to be found")
	}
	if def.Info.HumanName != "N4 Mini" {
		t.Errorf("HumanName = %q, want N4 Mini", def.Info.HumanName)
	}
	if def.Layout.KeyCount() != 4 {
		t.Errorf("KeyCount() = %d, want 4", def.Layout.KeyCount())
	}
	if got := def.OpendeckToDevice(0); got != 2 {
		t.Errorf("OpendeckToDevice(0) = %d, want 2", got)
	}
	if got := def.DeviceToOpendeck(2); got != 0 {
		t.Errorf("DeviceToOpendeck(2) = %d, want 0", got)
	}

	// An override directory searched after base replaces the manufacturer.
	overridden := `{
  "vid": "0300",
  "pid": "1010",
  "info": {"manufacturer": "Renamed Co", "human_name": "N4 Mini (rebrand)"},
  "layout": {"rows": 2, "cols": 2, "encoder_count": 0},
  "protocol": {"version": 2, "supports_both_states": false},
  "quirks": {"force_serial": false},
  "image_format": {"mode": "bmp", "size": [72, 72], "rotation": 0, "mirror": "none"}
}`
	writeRegistryFile(t, override, "n4mini.json", overridden)
	reg2, err := LoadRegistry([]string{base, override})
	if err != nil {
		t.Fatalf("LoadRegistry with override: %v", err)
	}
	def2, _ := reg2.FindByVIDPID(0x0300, 0x1010)
	if def2.Info.Manufacturer != "Renamed Co" {
		t.Errorf("later path did not override: Manufacturer = %q", def2.Info.Manufacturer)
	}
}

func TestIsSupported(t *testing.T) {
	dir := t.TempDir()
	writeRegistryFile(t, dir, "dev.json", sampleRegistryEntry)
	reg, err := LoadRegistry([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if !reg.IsSupported(0x0300, 0x1010) {
		t.Error("expected 0300:1010 to be supported")
	}
	if reg.IsSupported(0xffff, 0xffff) {
		t.Error("expected ffff:ffff to be unsupported")
	}
}

func TestLoadRegistryNoEntries(t *testing.T) {
	if _, err := LoadRegistry([]string{t.TempDir()}); err == nil {
		t.Fatal("expected error when no registry entries are found")
	}
}

func TestRegistryKnownIsSortedByVIDThenPID(t *testing.T) {
	dir := t.TempDir()
	writeRegistryFile(t, dir, "a.json", sampleRegistryEntry)
	writeRegistryFile(t, dir, "b.json", `{
  "vid": "0300", "pid": "0001",
  "info": {"manufacturer": "Mirajazz", "human_name": "Other"},
  "layout": {"rows": 1, "cols": 1, "encoder_count": 0},
  "protocol": {"version": 2, "supports_both_states": false},
  "quirks": {"force_serial": false},
  "image_format": {"mode": "bmp", "size": [72, 72], "rotation": 0, "mirror": "none"}
}`)
	reg, err := LoadRegistry([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	known := reg.Known()
	want := []string{"0300:0001", "0300:1010"}
	if len(known) != len(want) || known[0] != want[0] || known[1] != want[1] {
		t.Errorf("Known() = %v, want %v", known, want)
	}
}
