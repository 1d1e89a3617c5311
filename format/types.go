package format

type (
	PredictorKind   uint8
	CompressionType uint8
)

const (
	PredictorFixed PredictorKind = 0x1 // PredictorFixed represents a fixed polynomial predictor (order 0-4).
	PredictorLPC   PredictorKind = 0x2 // PredictorLPC represents an adaptive quantized LPC predictor (order 1-32).

	CompressionNone CompressionType = 0x1 // CompressionNone represents no compression.
	CompressionZstd CompressionType = 0x2 // CompressionZstd represents Zstandard compression.
	CompressionS2   CompressionType = 0x3 // CompressionS2 represents S2 compression.
	CompressionLZ4  CompressionType = 0x4 // CompressionLZ4 represents LZ4 compression.
)

func (k PredictorKind) String() string {
	switch k {
	case PredictorFixed:
		return "Fixed"
	case PredictorLPC:
		return "LPC"
	default:
		return "Unknown"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// ParseCompression maps a lower-case codec name to its CompressionType.
func ParseCompression(name string) (CompressionType, bool) {
	switch name {
	case "none", "":
		return CompressionNone, true
	case "zstd":
		return CompressionZstd, true
	case "s2":
		return CompressionS2, true
	case "lz4":
		return CompressionLZ4, true
	default:
		return 0, false
	}
}
