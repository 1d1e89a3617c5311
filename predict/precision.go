package predict

// BestPrecision returns the quantized coefficient precision in bits for a
// block of blockSize samples at bps bits per sample.
//
//	| bps  | block size                          | precision         |
//	|------|-------------------------------------|-------------------|
//	| < 16 | any                                 | max(1, 2 + bps/2) |
//	| 16   | 192/384/576/1152/2304/4608          | 7/8/9/10/11/12    |
//	| 16   | other                               | 13                |
//	| > 16 | 384                                 | 12                |
//	| > 16 | 1152                                | 13                |
//	| > 16 | other                               | 14                |
func BestPrecision(bps int, blockSize int) int {
	switch {
	case bps < 16:
		return max(1, 2+bps/2)
	case bps == 16:
		switch blockSize {
		case 192:
			return 7
		case 384:
			return 8
		case 576:
			return 9
		case 1152:
			return 10
		case 2304:
			return 11
		case 4608:
			return 12
		default:
			return 13
		}
	default:
		switch blockSize {
		case 384:
			return 12
		case 1152:
			return 13
		default:
			return 14
		}
	}
}
