//go:build windows

package hardware

import (
	"context"

	"github.com/smazurov/dropzone/internal/process"
)

func probeVendors(ctx context.Context, runner process.Runner) map[Vendor]bool {
	found := make(map[Vendor]bool)
	res, err := runner.Run(ctx, process.Command{
		Name: "wmic",
		Args: []string{"path", "win32_VideoController", "get", "name"},
	})
	if err == nil {
		found = vendorsFromControllers(string(res.Stdout))
	}
	if hasNVIDIA(ctx, runner) {
		found[VendorNVIDIA] = true
	}
	return found
}
