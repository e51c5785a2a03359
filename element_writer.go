package mkvtag

import (
	"encoding/binary"
	"math"
)

// MasterHeader writes an element's ID and size VINT (but not its
// children) into buf, returning an error if childrenSize cannot be
// encoded as a VINT. Callers compose the children's bytes separately
// (typically into their own Buffer first, so the size is known) and then
// prepend this header — the same two-pass approach the tag serializer
// uses when it sizes a Tags element before the planner places it.
func MasterHeader(buf *Buffer, id uint32, childrenSize uint64) error {
	idBytes := EncodeID(id)
	sizeBytes, err := EncodeVint(childrenSize)
	if err != nil {
		return err
	}
	buf.Write(idBytes)
	buf.Write(sizeBytes)
	return nil
}

// UintElement writes a complete unsigned-integer element: ID, size, and
// a minimal-width big-endian payload. A value of 0 still occupies one
// byte per spec §3.
func UintElement(buf *Buffer, id uint32, value uint64) error {
	payload := encodeMinimalUint(value)
	return writeElement(buf, id, payload)
}

// encodeUintFixed encodes value as a fixed-width n-byte big-endian
// unsigned integer, failing if value doesn't fit. Unlike EncodeVintFixed,
// this carries no VINT length marker — it's for uinteger element payloads
// (like SeekPosition) whose width is fixed by an existing field rather
// than by EBML's own size-prefix convention.
func encodeUintFixed(value uint64, n int) ([]byte, error) {
	if n < 1 || n > 8 || (n < 8 && value >= uint64(1)<<uint(8*n)) {
		return nil, ErrVintOverflow
	}
	out := make([]byte, n)
	v := value
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out, nil
}

func encodeMinimalUint(value uint64) []byte {
	n := 1
	for v := value >> 8; v != 0; v >>= 8 {
		n++
	}
	out := make([]byte, n)
	v := value
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// IntElement writes a complete signed-integer element using the minimal
// two's-complement width that preserves value's sign.
func IntElement(buf *Buffer, id uint32, value int64) error {
	payload := encodeMinimalInt(value)
	return writeElement(buf, id, payload)
}

func encodeMinimalInt(value int64) []byte {
	n := 1
	for {
		lo := -(int64(1) << (uint(n)*8 - 1))
		hi := (int64(1) << (uint(n)*8 - 1)) - 1
		if value >= lo && value <= hi {
			break
		}
		n++
	}
	out := make([]byte, n)
	v := uint64(value)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// FloatElement writes a complete 8-byte IEEE-754 float element.
func FloatElement(buf *Buffer, id uint32, value float64) error {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, math.Float64bits(value))
	return writeElement(buf, id, payload)
}

// StringElement writes a complete UTF-8 string element with no added
// NUL terminator (spec §3: strings are not null-terminated in storage).
func StringElement(buf *Buffer, id uint32, value string) error {
	return writeElement(buf, id, []byte(value))
}

// BinaryElement writes a complete element whose payload is an opaque
// byte slice, used for TagBinary and similar raw-bytes fields.
func BinaryElement(buf *Buffer, id uint32, value []byte) error {
	return writeElement(buf, id, value)
}

// VoidElement writes a complete Void element of the given total size
// (header + payload), zero-filling the payload. totalSize must be large
// enough to hold at least a 2-byte header (1-byte ID + 1-byte size); the
// planner is responsible for picking a totalSize that fits the target
// region exactly.
func VoidElement(buf *Buffer, totalSize int) error {
	idBytes := EncodeID(idVoid)
	payloadSize := totalSize - len(idBytes)
	// Grow the size VINT width, if needed, to still land on totalSize.
	for width := 1; width <= maxVintLen; width++ {
		payloadSize--
		if payloadSize < 0 {
			return ErrInvalidArgument
		}
		sizeBytes, err := EncodeVintFixed(uint64(payloadSize), width)
		if err != nil {
			continue
		}
		buf.Write(idBytes)
		buf.Write(sizeBytes)
		for i := 0; i < payloadSize; i++ {
			buf.WriteByte(0)
		}
		return nil
	}
	return ErrVintOverflow
}

func writeElement(buf *Buffer, id uint32, payload []byte) error {
	if err := MasterHeader(buf, id, uint64(len(payload))); err != nil {
		return err
	}
	buf.Write(payload)
	return nil
}

// UintElementSize computes the encoded size of a UintElement without
// writing it, letting a caller pre-size a Buffer (via Grow) before
// building a large Tags tree instead of relying on growth-by-doubling.
func UintElementSize(id uint32, value uint64) int {
	return elementSize(id, len(encodeMinimalUint(value)))
}

// StringElementSize computes the encoded size of a StringElement without
// writing it, for the same Buffer-presizing use as UintElementSize.
func StringElementSize(id uint32, value string) int {
	return elementSize(id, len(value))
}

// BinaryElementSize computes the encoded size of a BinaryElement without
// writing it, for the same Buffer-presizing use as UintElementSize.
func BinaryElementSize(id uint32, value []byte) int {
	return elementSize(id, len(value))
}

func elementSize(id uint32, payloadLen int) int {
	idLen := len(EncodeID(id))
	sizeBytes, err := EncodeVint(uint64(payloadLen))
	if err != nil {
		// Callers only ever estimate sizes for payloads that will also be
		// written, so EncodeVint succeeding there implies it succeeds here.
		return idLen + 9 + payloadLen
	}
	return idLen + len(sizeBytes) + payloadLen
}
