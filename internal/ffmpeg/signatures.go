package ffmpeg

import (
	"strings"
	"sync"
)

// FailureClass classifies a failed ffmpeg run.
type FailureClass string

// Failure classes.
const (
	FailureUnknown  FailureClass = ""
	FailureHardware FailureClass = "hardware"
)

// SignatureVersion is bumped whenever DefaultSignatures changes.
const SignatureVersion = 3

// Signature maps a lowercase stderr substring to a failure class.
type Signature struct {
	Pattern string       `toml:"pattern" json:"pattern"`
	Class   FailureClass `toml:"class" json:"class"`
}

// DefaultSignatures are phrases ffmpeg and its hardware backends print when
// a GPU encoder or decoder cannot be used. Every entry carries a failure
// keyword: a vendor name alone is not enough to classify.
var DefaultSignatures = []Signature{
	// encoder open / init
	{Pattern: "error while opening encoder", Class: FailureHardware},
	{Pattern: "could not open encoder before eof", Class: FailureHardware},
	{Pattern: "error initializing output stream", Class: FailureHardware},
	{Pattern: "hardware device setup failed", Class: FailureHardware},
	{Pattern: "device creation failed", Class: FailureHardware},
	{Pattern: "failed to create hardware device", Class: FailureHardware},
	{Pattern: "no device available for decoder", Class: FailureHardware},
	// pixel format
	{Pattern: "impossible to convert between the formats", Class: FailureHardware},
	{Pattern: "unsupported pixel format", Class: FailureHardware},
	{Pattern: "incompatible pixel format", Class: FailureHardware},
	// nvidia
	{Pattern: "no nvenc capable devices found", Class: FailureHardware},
	{Pattern: "openencodesessionex failed", Class: FailureHardware},
	{Pattern: "cannot load libcuda", Class: FailureHardware},
	{Pattern: "cannot load nvcuda.dll", Class: FailureHardware},
	{Pattern: "driver does not support the required nvenc api version", Class: FailureHardware},
	{Pattern: "cuda_error_no_device", Class: FailureHardware},
	// intel
	{Pattern: "error initializing an internal mfx session", Class: FailureHardware},
	{Pattern: "error creating a mfx session", Class: FailureHardware},
	{Pattern: "low-level component initialization failed", Class: FailureHardware},
	// amd
	{Pattern: "dll amfrt64.dll failed to open", Class: FailureHardware},
	{Pattern: "amf failed to initialise", Class: FailureHardware},
	{Pattern: "failed to create amf context", Class: FailureHardware},
	// apple
	{Pattern: "cannot create compression session", Class: FailureHardware},
	{Pattern: "error encoding frame: -12902", Class: FailureHardware},
	// vaapi
	{Pattern: "failed to initialise vaapi connection", Class: FailureHardware},
	{Pattern: "no va display found", Class: FailureHardware},
	{Pattern: "cannot open the drm device", Class: FailureHardware},
}

// SignatureTable is a versioned, extendable classification table.
type SignatureTable struct {
	mu         sync.RWMutex
	version    int
	signatures []Signature
}

// NewSignatureTable creates a table from DefaultSignatures plus extra entries.
func NewSignatureTable(extra ...Signature) *SignatureTable {
	t := &SignatureTable{version: SignatureVersion}
	t.signatures = normalize(append(append([]Signature{}, DefaultSignatures...), extra...))
	return t
}

// Version returns the table version.
func (t *SignatureTable) Version() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Signatures returns a copy of the table entries.
func (t *SignatureTable) Signatures() []Signature {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Signature(nil), t.signatures...)
}

// Replace swaps the extra entries, keeping the defaults.
func (t *SignatureTable) Replace(extra []Signature) {
	entries := normalize(append(append([]Signature{}, DefaultSignatures...), extra...))
	t.mu.Lock()
	t.signatures = entries
	t.mu.Unlock()
}

// Classify returns the class of the first signature found in stderr.
func (t *SignatureTable) Classify(stderr string) (FailureClass, string) {
	lower := strings.ToLower(stderr)

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, sig := range t.signatures {
		if strings.Contains(lower, sig.Pattern) {
			return sig.Class, sig.Pattern
		}
	}
	return FailureUnknown, ""
}

// IsHardwareFailure reports whether stderr matches a hardware signature.
func (t *SignatureTable) IsHardwareFailure(stderr string) bool {
	class, _ := t.Classify(stderr)
	return class == FailureHardware
}

func normalize(in []Signature) []Signature {
	out := make([]Signature, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, sig := range in {
		p := strings.ToLower(strings.TrimSpace(sig.Pattern))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, Signature{Pattern: p, Class: sig.Class})
	}
	return out
}
