package audio

import (
	"bytes"
	"encoding/binary"
)

// WAV format constants for the mono 16-bit PCM voxbridge captures and
// synthesizes everywhere (spec.md §4.1, §4.6): PCM format tag 1, one
// channel, 16 bits per sample.
const (
	wavFormatPCM  = 1
	wavChannels   = 1
	wavBitDepth   = 16
	wavHeaderSize = 44 // bytes before the "data" chunk's payload
)

// NewWavBuffer wraps raw little-endian PCM samples in a RIFF/WAVE header at
// the given sample rate, the format pkg/stt.Engine writes to a temporary
// file for whisper.cpp's CLI and piper emits on stdout (pkg/tts.Engine).
func NewWavBuffer(pcm []byte, sampleRate int) []byte {
	const bytesPerSample = wavBitDepth / 8
	blockAlign := wavChannels * bytesPerSample
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(wavHeaderSize-8+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(wavFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(wavChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(wavBitDepth))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}
