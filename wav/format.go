package wav

import "fmt"

// Format describes the PCM layout of a WAVE file.
type Format struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// ByteRate returns SampleRate × Channels × BitsPerSample / 8.
func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.Channels) * uint32(f.BitsPerSample) / 8
}

// BlockAlign returns the size in bytes of one inter-channel frame.
func (f Format) BlockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

// BytesPerSample returns the container size of a single sample.
func (f Format) BytesPerSample() int {
	return int(f.BitsPerSample) / 8
}

func (f Format) String() string {
	return fmt.Sprintf("%d-bit %d channels, %dHz", f.BitsPerSample, f.Channels, f.SampleRate)
}

func supportedBitDepth(bps uint16) bool {
	switch bps {
	case 8, 16, 24, 32:
		return true
	default:
		return false
	}
}
