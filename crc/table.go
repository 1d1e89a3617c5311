package crc

var (
	crc8Params, _  = New(PolyCRC8, 8)
	crc16Params, _ = New(PolyCRC16, 16)

	crc8Table  = makeTable8()
	crc16Table = makeTable16()
)

func makeTable8() (t [256]uint8) {
	for i := range t {
		t[i] = uint8(crc8Params.Build([]uint16{uint16(i)}))
	}

	return t
}

func makeTable16() (t [256]uint16) {
	for i := range t {
		t[i] = crc16Params.Bytes([]byte{byte(i)})
	}

	return t
}

// Sum8 returns the CRC-8 (poly 0x07) of data, as used by FLAC frame headers.
func Sum8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		crc = crc8Table[crc^b]
	}

	return crc
}

// Sum16 returns the CRC-16 (poly 0x8005) of data, as used by FLAC frame
// footers.
func Sum16(data []byte) uint16 {
	return Update16(0, data)
}

// Update16 continues a CRC-16 computation over more data.
func Update16(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crc<<8 ^ crc16Table[byte(crc>>8)^b]
	}

	return crc
}
