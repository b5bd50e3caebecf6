//go:build linux

package hardware

import (
	"context"
	"os"
	"strings"

	"github.com/smazurov/dropzone/internal/process"
)

const renderNode = "/dev/dri/renderD128"

func probeVendors(ctx context.Context, runner process.Runner) map[Vendor]bool {
	found := make(map[Vendor]bool)
	if res, err := runner.Run(ctx, process.Command{Name: "lspci"}); err == nil {
		var controllers []string
		for line := range strings.Lines(string(res.Stdout)) {
			if strings.Contains(line, "VGA") || strings.Contains(line, "3D controller") || strings.Contains(line, "Display controller") {
				controllers = append(controllers, line)
			}
		}
		found = vendorsFromControllers(strings.Join(controllers, ""))
	}
	if hasNVIDIA(ctx, runner) {
		found[VendorNVIDIA] = true
	}
	if _, err := os.Stat(renderNode); err == nil {
		found[VendorVAAPI] = true
	}
	return found
}
