package audio

// Frame is an owned, immutable run of signed 16-bit PCM samples captured at
// a fixed rate (spec.md §3). Capture produces frames of exactly
// CaptureFrameSamples (30ms at 16kHz = 480 samples); playback is pulled in
// frames of DefaultPlaybackFrameMs (20ms at the configured TTS rate) by
// default.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// CaptureSampleRate is the fixed microphone capture rate (spec.md §4.1).
const CaptureSampleRate = 16000

// CaptureFrameMs is the fixed capture frame granularity.
const CaptureFrameMs = 30

// CaptureFrameSamples is CaptureSampleRate * CaptureFrameMs / 1000.
const CaptureFrameSamples = CaptureSampleRate * CaptureFrameMs / 1000

// DefaultPlaybackSampleRate is the default TTS/playback sample rate
// (spec.md §3, §6).
const DefaultPlaybackSampleRate = 22050

// DefaultPlaybackFrameMs is the default playback pull granularity
// (spec.md §4.7).
const DefaultPlaybackFrameMs = 20

// BytesToInt16LE converts a little-endian 16-bit PCM byte slice to samples.
func BytesToInt16LE(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}

// Int16LEToBytes converts samples to little-endian 16-bit PCM bytes.
func Int16LEToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[2*i] = byte(uint16(v))
		out[2*i+1] = byte(uint16(v) >> 8)
	}
	return out
}
