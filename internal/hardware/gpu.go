package hardware

import (
	"bufio"
	"context"
	"strings"

	"github.com/smazurov/dropzone/internal/process"
)

// VendorProbe reports which GPU vendors are present on the machine.
type VendorProbe func(ctx context.Context, runner process.Runner) map[Vendor]bool

// hasNVIDIA runs nvidia-smi -L, which lists one "GPU n: ..." line per device.
func hasNVIDIA(ctx context.Context, runner process.Runner) bool {
	res, err := runner.Run(ctx, process.Command{Name: "nvidia-smi", Args: []string{"-L"}})
	if err != nil {
		return false
	}
	return strings.Contains(string(res.Stdout), "GPU ")
}

// vendorsFromControllers classifies video controller names as printed by
// lspci or wmic.
func vendorsFromControllers(output string) map[Vendor]bool {
	found := make(map[Vendor]bool)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.ToLower(scanner.Text())
		switch {
		case strings.Contains(line, "nvidia"):
			found[VendorNVIDIA] = true
		case strings.Contains(line, "intel"):
			found[VendorIntel] = true
		case strings.Contains(line, "amd"), strings.Contains(line, "radeon"), strings.Contains(line, "advanced micro devices"):
			found[VendorAMD] = true
		}
	}
	return found
}
