package ffmpeg

// Params describes one file-to-file ffmpeg invocation.
// Zero values mean "not set" unless noted.
type Params struct {
	// Global / input configuration
	GlobalArgs []string // -init_hw_device, -vaapi_device
	InputArgs  []string // options placed before -i: -hwaccel cuda, -f concat -safe 0
	Start      float64  // -ss seconds (0 = not set)
	Input      string
	// ExtraInputs are complete secondary input groups, e.g. {"-f", "lavfi", "-i", "anullsrc"}.
	ExtraInputs [][]string
	Duration    float64 // -t seconds (0 = to end of input)

	// Stream selection
	Maps []string // 0:v:0, 0:a:0?

	// Copy writes -c copy and skips every encoder setting below.
	Copy bool

	// Video encoding
	Encoder       string   // libx264, h264_nvenc, ...
	EncoderArgs   []string // vendor quality/preset flags
	VideoFilters  []string // joined with ',' into -vf
	PixelFormat   string   // yuv420p
	FrameRate     int      // -r (0 = keep)
	GOP           int      // keyframe interval (0 = not set)
	BFrames       int      // B-frame count (-1 = not set, 0 = no B-frames)
	ForceKeyframe bool     // keyframe at output position 0

	// Audio encoding
	AudioCodec      string // aac, libopus, ... ("" = no audio settings)
	AudioBitrate    string // 96k
	AudioSampleRate int
	AudioChannels   int

	// Progress enables -progress pipe:1 on stdout.
	Progress bool

	// Behavior flags
	Options []OptionType

	Output string
}

// NewParams returns Params with B-frames unset.
func NewParams() *Params {
	return &Params{BFrames: -1}
}
