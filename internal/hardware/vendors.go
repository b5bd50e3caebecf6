package hardware

import "slices"

// vendorSpec describes how to drive one vendor's encoders. Quality values
// target visually lossless boundary segments.
type vendorSpec struct {
	vendor  Vendor
	h264    string
	hevc    string
	decoder string
	hwaccel string
	device  string
	output  []string
	filter  string
}

var vendorOrder = []vendorSpec{
	{
		vendor:  VendorNVIDIA,
		h264:    "h264_nvenc",
		hevc:    "hevc_nvenc",
		decoder: "h264_cuvid",
		hwaccel: "cuda",
		output:  []string{"-preset", "p4", "-rc", "vbr", "-cq", "20"},
	},
	{
		vendor:  VendorIntel,
		h264:    "h264_qsv",
		hevc:    "hevc_qsv",
		decoder: "h264_qsv",
		hwaccel: "qsv",
		output:  []string{"-preset", "medium", "-global_quality", "20"},
		filter:  "hwupload=extra_hw_frames=64,format=qsv",
	},
	{
		vendor:  VendorAMD,
		h264:    "h264_amf",
		hevc:    "hevc_amf",
		hwaccel: "d3d11va",
		output:  []string{"-usage", "transcoding", "-quality", "balanced", "-rc", "cqp", "-qp_i", "20", "-qp_p", "20"},
	},
	{
		vendor:  VendorApple,
		h264:    "h264_videotoolbox",
		hevc:    "hevc_videotoolbox",
		hwaccel: "videotoolbox",
		output:  []string{"-allow_sw", "1", "-realtime", "0", "-q:v", "65"},
	},
	{
		vendor:  VendorVAAPI,
		h264:    "h264_vaapi",
		hevc:    "hevc_vaapi",
		hwaccel: "vaapi",
		device:  "/dev/dri/renderD128",
		output:  []string{"-qp", "20"},
		filter:  "format=nv12,hwupload",
	},
}

func specFor(v Vendor) (vendorSpec, bool) {
	for _, s := range vendorOrder {
		if s.vendor == v {
			return s, true
		}
	}
	return vendorSpec{}, false
}

// inputArgs returns decode and device flags placed before -i. Decoded frames
// stay in system memory so CPU filters (scale, pad) keep working.
func (s vendorSpec) inputArgs(p *Profile) []string {
	switch s.vendor {
	case VendorIntel:
		return []string{"-init_hw_device", "qsv=hw", "-filter_hw_device", "hw"}
	case VendorVAAPI:
		device := p.Device
		if device == "" {
			device = s.device
		}
		return []string{"-vaapi_device", device}
	default:
		if p.HWAccel == "" {
			return nil
		}
		return []string{"-hwaccel", p.HWAccel}
	}
}

func (s vendorSpec) profile(compiled map[string]bool) *Profile {
	p := &Profile{
		CacheVersion: CacheVersion,
		Available:    true,
		Vendor:       s.vendor,
		Encoder:      s.h264,
		Decoder:      s.decoder,
		HWAccel:      s.hwaccel,
		Device:       s.device,
		ExtraParams:  slices.Clone(s.output),
	}
	if compiled[s.hevc] {
		p.HEVCEncoder = s.hevc
	}
	return p
}
