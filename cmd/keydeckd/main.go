// SPDX-License-Identifier: Unlicense OR MIT

// Command keydeckd is the KeyDeck daemon: it loads a page-group
// configuration, watches for Elgato- and Mirajazz-class panels, and
// drives their buttons, encoders and screens from it. Unlike the
// original Rust binary it replaces, it exposes no runtime control
// surface (no brightness/page/shutdown subcommands) — everything is
// either configuration-driven or a POSIX signal (SIGHUP to reload,
// SIGINT/SIGTERM to exit).
package main

import (
	"flag"
	"fmt"
	"os"

	"keydeck.dev/keydeck/daemon"
	"keydeck.dev/keydeck/internal/klog"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to the page-group configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	reload := flag.Bool("reload", false, "validate the configuration and exit, without starting the daemon")
	flag.Parse()

	klog.SetDebug(*verbose)

	if *reload {
		if err := validateOnly(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("configuration OK")
		return
	}

	d, err := daemon.New(*configPath, registrySearchPaths(), daemon.NoopLock{})
	if err != nil {
		klog.Error("%v", err)
		os.Exit(1)
	}
	if err := d.Run(); err != nil {
		klog.Error("%v", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.config/keydeck/config.yaml"
	}
	return "/etc/keydeck/config.yaml"
}

// registrySearchPaths lists, in override order, the directories scanned
// for Mirajazz device-definition JSON files.
func registrySearchPaths() []string {
	paths := []string{"/usr/share/keydeck/devices"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home+"/.config/keydeck/devices")
	}
	return paths
}
