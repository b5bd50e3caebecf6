//go:build darwin

package hardware

import (
	"context"

	"github.com/smazurov/dropzone/internal/process"
)

// VideoToolbox ships with the OS.
func probeVendors(_ context.Context, _ process.Runner) map[Vendor]bool {
	return map[Vendor]bool{VendorApple: true}
}
