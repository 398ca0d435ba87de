// SPDX-License-Identifier: Unlicense OR MIT

package main

import (
	"context"
	"fmt"

	"keydeck.dev/keydeck/config"
)

// validateOnly loads and validates path, probing every configured
// service once, without starting any device watcher or focus bridge.
func validateOnly(path string) error {
	if _, err := config.Load(context.Background(), path, config.ProbeServices(true)); err != nil {
		return fmt.Errorf("keydeckd: %w", err)
	}
	return nil
}
