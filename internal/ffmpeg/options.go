package ffmpeg

import "strings"

// OptionType represents a strongly typed ffmpeg behavior flag.
type OptionType string

// Behavior flags understood by BuildArgs.
const (
	OptionAvoidNegativeTS OptionType = "avoid_negative_ts"
	OptionFastStart       OptionType = "faststart"
	OptionShortest        OptionType = "shortest"
	OptionGeneratePTS     OptionType = "genpts"
)

// optionArgs maps each flag to its output arguments.
var optionArgs = map[OptionType][]string{
	OptionAvoidNegativeTS: {"-avoid_negative_ts", "make_zero"},
	OptionFastStart:       {"-movflags", "+faststart"},
	OptionShortest:        {"-shortest"},
	OptionGeneratePTS:     {"-fflags", "+genpts"},
}

// hardwareSuffixes identifies hardware encoders by name.
var hardwareSuffixes = []string{
	"_nvenc", "_qsv", "_amf", "_videotoolbox", "_vaapi",
}

// IsHardwareEncoder reports whether the encoder name belongs to a GPU backend.
func IsHardwareEncoder(encoder string) bool {
	for _, suffix := range hardwareSuffixes {
		if strings.HasSuffix(encoder, suffix) {
			return true
		}
	}
	return false
}
