package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// HeaderSize is the length of the canonical RIFF/WAVE header produced by Wrap.
const HeaderSize = 44

// Format describes linear PCM sample layout.
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is the layout of every speech payload: 24 kHz, mono, 16-bit.
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// BlockAlign is the number of bytes per sample frame.
func (f Format) BlockAlign() int { return f.Channels * f.BitsPerSample / 8 }

// ByteRate is the number of bytes per second of audio.
func (f Format) ByteRate() int { return f.SampleRate * f.BlockAlign() }

// Duration returns the playback length of n bytes of PCM in this format.
func (f Format) Duration(n int) time.Duration {
	if f.ByteRate() <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(f.ByteRate()))
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %d-bit", f.SampleRate, f.Channels, f.BitsPerSample)
}

func (f Format) header(riffSize, dataSize uint32) [HeaderSize]byte {
	var hdr [HeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], riffSize)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(f.ByteRate()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(f.BlockAlign()))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(f.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataSize)
	return hdr
}

// Wrap prepends a WAV header in DefaultFormat to raw little-endian PCM.
// The payload is copied verbatim; len(result) == HeaderSize+len(pcm).
func Wrap(pcm []byte) []byte {
	return WrapFormat(pcm, DefaultFormat)
}

// WrapFormat is Wrap for an explicit format.
func WrapFormat(pcm []byte, f Format) []byte {
	size := uint32(len(pcm))
	hdr := f.header(36+size, size)

	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, hdr[:]...)
	return append(out, pcm...)
}

// PCM returns the payload that follows the 44-byte header. ok is false when
// wav is too short to contain a header.
func PCM(wav []byte) (pcm []byte, ok bool) {
	if len(wav) < HeaderSize {
		return nil, false
	}
	return wav[HeaderSize:], true
}
