//go:build !linux && !windows && !darwin

package hardware

import (
	"context"

	"github.com/smazurov/dropzone/internal/process"
)

func probeVendors(ctx context.Context, runner process.Runner) map[Vendor]bool {
	found := make(map[Vendor]bool)
	if hasNVIDIA(ctx, runner) {
		found[VendorNVIDIA] = true
	}
	return found
}
