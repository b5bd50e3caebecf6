package hardware

import (
	"fmt"
	"slices"
	"time"
)

// CacheVersion tags persisted profiles. Profiles carrying a lower version
// are re-detected.
const CacheVersion = 3

// Vendor identifies a hardware encoding family.
type Vendor string

// Supported vendors in detection order.
const (
	VendorNone   Vendor = ""
	VendorNVIDIA Vendor = "nvidia"
	VendorIntel  Vendor = "intel"
	VendorAMD    Vendor = "amd"
	VendorApple  Vendor = "apple"
	VendorVAAPI  Vendor = "vaapi"
)

// Codec is the output codec family of an encode.
type Codec string

// Codec families.
const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "hevc"
)

// CodecFor maps an ffprobe codec name to the codec family used to re-encode it.
// Anything that is not HEVC is encoded as H.264.
func CodecFor(codecName string) Codec {
	switch codecName {
	case "hevc", "h265":
		return CodecH265
	default:
		return CodecH264
	}
}

// Profile is the detected hardware encoding capability.
type Profile struct {
	CacheVersion int       `json:"_cache_version"`
	DetectedAt   time.Time `json:"detected_at"`
	Available    bool      `json:"available"`
	Vendor       Vendor    `json:"vendor,omitempty"`
	Encoder      string    `json:"encoder,omitempty"`
	HEVCEncoder  string    `json:"hevc_encoder,omitempty"`
	Decoder      string    `json:"decoder,omitempty"`
	HWAccel      string    `json:"hwaccel,omitempty"`
	Device       string    `json:"device,omitempty"`
	ExtraParams  []string  `json:"extra_params,omitempty"`
}

func (p *Profile) String() string {
	if p == nil || !p.Available {
		return "software (libx264/libx265)"
	}
	s := fmt.Sprintf("%s: %s", p.Vendor, p.Encoder)
	if p.HEVCEncoder != "" {
		s += ", " + p.HEVCEncoder
	}
	return s
}

// EncodingParams holds the ffmpeg arguments needed to drive one encoder.
type EncodingParams struct {
	// Input goes before -i (hardware decode and device setup).
	Input []string `json:"input"`
	// Output follows -c:v Encoder (quality and rate control).
	Output  []string `json:"output"`
	Encoder string   `json:"encoder"`
	// Filter is appended to the video filter chain, e.g. hwupload.
	Filter   string `json:"filter,omitempty"`
	Hardware bool   `json:"hardware"`
}

// SoftwareParams returns the x264/x265 mapping for codec.
func SoftwareParams(codec Codec) EncodingParams {
	if codec == CodecH265 {
		return EncodingParams{
			Encoder: "libx265",
			Output:  []string{"-preset", "fast", "-crf", "22"},
		}
	}
	return EncodingParams{
		Encoder: "libx264",
		Output:  []string{"-preset", "fast", "-crf", "18"},
	}
}

// EncodingParams returns hardware parameters for codec when the profile has
// a matching encoder and hwEnabled is set, otherwise the software mapping.
func (p *Profile) EncodingParams(codec Codec, hwEnabled bool) EncodingParams {
	if p == nil || !p.Available || !hwEnabled {
		return SoftwareParams(codec)
	}

	encoder := p.Encoder
	if codec == CodecH265 {
		encoder = p.HEVCEncoder
	}
	if encoder == "" {
		return SoftwareParams(codec)
	}

	spec, ok := specFor(p.Vendor)
	if !ok {
		return SoftwareParams(codec)
	}

	return EncodingParams{
		Input:    spec.inputArgs(p),
		Output:   slices.Clone(p.ExtraParams),
		Encoder:  encoder,
		Filter:   spec.filter,
		Hardware: true,
	}
}
