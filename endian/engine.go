// Package endian provides byte order utilities for the binary layouts flacore
// reads and writes.
//
// EndianEngine combines encoding/binary's ByteOrder and AppendByteOrder so a
// single value can both parse fixed-size fields and append them to a buffer:
//
//	engine := endian.GetLittleEndianEngine()
//	size := engine.Uint32(hdr[4:8])
//	buf = engine.AppendUint32(buf, size)
//
// RIFF containers are little-endian and RIFX containers are big-endian;
// ForContainerMagic selects the engine from the first four bytes of a file.
//
// All functions and methods in this package are safe for concurrent use.
package endian

import "encoding/binary"

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface.
//
// This interface is satisfied by binary.LittleEndian and binary.BigEndian.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var (
	riffMagic = [4]byte{'R', 'I', 'F', 'F'}
	rifxMagic = [4]byte{'R', 'I', 'F', 'X'}
)

// GetLittleEndianEngine returns the little-endian engine.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// ForContainerMagic returns the byte order signalled by a RIFF-family magic.
//
// Returns:
//   - EndianEngine: little-endian for "RIFF", big-endian for "RIFX"
//   - bool: false if magic is neither form
func ForContainerMagic(magic [4]byte) (EndianEngine, bool) {
	switch magic {
	case riffMagic:
		return binary.LittleEndian, true
	case rifxMagic:
		return binary.BigEndian, true
	default:
		return nil, false
	}
}

// IsBigEndian reports whether engine is the big-endian engine.
func IsBigEndian(engine EndianEngine) bool {
	return engine == binary.BigEndian
}
