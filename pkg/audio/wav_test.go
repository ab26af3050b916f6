package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestNewWavBufferHeaderShape(t *testing.T) {
	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	wav := NewWavBuffer(pcm, CaptureSampleRate)

	if !bytes.HasPrefix(wav, []byte("RIFF")) {
		t.Errorf("expected RIFF prefix")
	}
	if !bytes.Contains(wav, []byte("WAVE")) {
		t.Errorf("expected WAVE format identifier")
	}

	expectedLen := wavHeaderSize + len(pcm)
	if len(wav) != expectedLen {
		t.Errorf("expected length %d, got %d", expectedLen, len(wav))
	}
}

func TestNewWavBufferEncodesSampleRate(t *testing.T) {
	pcm := make([]byte, 8)
	wav := NewWavBuffer(pcm, CaptureSampleRate)

	gotRate := binary.LittleEndian.Uint32(wav[24:28])
	if gotRate != uint32(CaptureSampleRate) {
		t.Errorf("expected sample rate %d encoded at offset 24, got %d", CaptureSampleRate, gotRate)
	}

	gotByteRate := binary.LittleEndian.Uint32(wav[28:32])
	wantByteRate := uint32(CaptureSampleRate * wavChannels * (wavBitDepth / 8))
	if gotByteRate != wantByteRate {
		t.Errorf("expected byte rate %d, got %d", wantByteRate, gotByteRate)
	}
}
