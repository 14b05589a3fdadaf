package demo

import (
	"encoding/binary"
	"math"
)

const sampleRate = 22050

// NarrationWAV renders the synthetic narration track: a mono 16-bit PCM WAV
// of layered sine tones under a half-sine envelope, so demo scenes have a
// playable audio asset without shipping a binary file.
func NarrationWAV(durationSeconds int) []byte {
	if durationSeconds <= 0 {
		durationSeconds = 14
	}
	frames := durationSeconds * sampleRate
	buf := make([]byte, 44+frames*2)
	writeWavHeader(buf, frames)

	for i := 0; i < frames; i++ {
		t := float64(i) / sampleRate
		sample := math.Sin(2*math.Pi*215*t)*0.25 +
			math.Sin(2*math.Pi*325*t)*0.16 +
			math.Sin(2*math.Pi*420*t)*0.08
		envelope := math.Sin(math.Pi * float64(i) / float64(frames))
		value := sample * envelope
		if value > 1 {
			value = 1
		} else if value < -1 {
			value = -1
		}
		binary.LittleEndian.PutUint16(buf[44+i*2:], uint16(int16(value*32767)))
	}
	return buf
}

func writeWavHeader(buf []byte, frames int) {
	const bytesPerSample = 2
	dataLength := frames * bytesPerSample

	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLength))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1)
	binary.LittleEndian.PutUint16(buf[22:], 1)
	binary.LittleEndian.PutUint32(buf[24:], sampleRate)
	binary.LittleEndian.PutUint32(buf[28:], sampleRate*bytesPerSample)
	binary.LittleEndian.PutUint16(buf[32:], bytesPerSample)
	binary.LittleEndian.PutUint16(buf[34:], 8*bytesPerSample)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLength))
}
