package mkvtag

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Element IDs consumed or produced by this package, taken from the
// Matroska/EBML element catalog. Only the subset this library ever
// touches is declared here; a generic demuxer would carry the rest
// (track, video, audio, cluster element IDs), which have no home in a
// tag-only library.
const (
	idEBMLHeader             = 0x1A45DFA3
	idEBMLVersion            = 0x4286
	idEBMLReadVersion        = 0x42F7
	idEBMLMaxIDLength        = 0x42F2
	idEBMLMaxSizeLength      = 0x42F3
	idEBMLDocType            = 0x4282
	idEBMLDocTypeVersion     = 0x4287
	idEBMLDocTypeReadVersion = 0x4285

	idSegment = 0x18538067

	idSeekHead = 0x114D9B74
	idSeek     = 0x4DBB
	idSeekID   = 0x53AB
	idSeekPos  = 0x53AC

	idInfo = 0x1549A966
	idCues = 0x1C53BB6B
	idTags = 0x1254C367

	idTracks      = 0x1654AE6B
	idChapters    = 0x1043A770
	idAttachments = 0x1941A469
	idCluster     = 0x1F43B675

	idVoid = 0xEC

	idTag              = 0x7373
	idTargets          = 0x63C0
	idTargetTypeValue  = 0x68CA
	idTargetType       = 0x63CA
	idTagTrackUID      = 0x63C5
	idTagEditionUID    = 0x63C9
	idTagChapterUID    = 0x63C4
	idTagAttachmentUID = 0x63C6
	idSimpleTag        = 0x67C8
	idTagName          = 0x45A3
	idTagLanguage      = 0x447A
	idTagLanguageBCP47 = 0x447B
	idTagDefault       = 0x4484
	idTagString        = 0x4487
	idTagBinary        = 0x4485
)

// header describes one framed EBML element: its ID and size VINTs plus
// the byte offsets bracketing its payload. It generalizes the teacher's
// EBMLElement by separating "I have read the header" from "I have
// materialized the payload" — the structure index and write planner only
// ever need the former for most elements they skip over.
type header struct {
	id          uint32
	size        uint64
	unknownSize bool
	idLen       int
	sizeLen     int
	dataOffset  int64
	endOffset   int64 // dataOffset + size; the stream's end for unknown-size elements
}

// elementReader walks a stream of framed EBML elements, mirroring the
// teacher's EBMLReader but splitting header reads from payload reads so
// callers that only need offsets (the structure index) never pay for
// materializing element bodies they are going to skip anyway.
type elementReader struct {
	r   io.ReadSeeker
	pos int64
}

func newElementReader(r io.ReadSeeker) *elementReader {
	return &elementReader{r: r}
}

func (er *elementReader) Position() int64 {
	return er.pos
}

func (er *elementReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := er.r.Seek(offset, whence)
	if err != nil {
		return 0, wrapErr(ErrIO, err)
	}
	er.pos = pos
	return pos, nil
}

// ReadHeader reads one element's ID and size VINTs and returns its
// header, leaving the stream positioned at dataOffset.
func (er *elementReader) ReadHeader() (header, error) {
	id, idLen, err := readVint(er.r, true)
	if err != nil {
		if err == io.EOF {
			return header{}, io.EOF
		}
		return header{}, fmt.Errorf("element header: %w", err)
	}
	if idLen > 4 {
		return header{}, fmt.Errorf("element header: %d-byte ID: %w", idLen, ErrCorrupt)
	}
	er.pos += int64(idLen)

	size, sizeLen, err := readVint(er.r, false)
	if err != nil {
		return header{}, fmt.Errorf("element header: %w", err)
	}
	er.pos += int64(sizeLen)

	h := header{
		id:         uint32(id),
		size:       size,
		idLen:      idLen,
		sizeLen:    sizeLen,
		dataOffset: er.pos,
	}
	if IsUnknownVint(size, sizeLen) {
		h.unknownSize = true
		end, err := er.r.Seek(0, io.SeekEnd)
		if err != nil {
			return header{}, wrapErr(ErrIO, err)
		}
		if _, err := er.r.Seek(er.pos, io.SeekStart); err != nil {
			return header{}, wrapErr(ErrIO, err)
		}
		h.endOffset = end
	} else {
		h.endOffset = h.dataOffset + int64(size)
	}
	return h, nil
}

// PeekHeader reads a header then rewinds to the position it started
// from, for lookahead decisions that don't want to commit to consuming
// the element.
func (er *elementReader) PeekHeader() (header, error) {
	start := er.pos
	h, err := er.ReadHeader()
	if err != nil {
		return header{}, err
	}
	if _, serr := er.Seek(start, io.SeekStart); serr != nil {
		return header{}, serr
	}
	return h, nil
}

// Skip advances the stream past h's payload without reading it.
func (er *elementReader) Skip(h header) error {
	if h.unknownSize {
		return fmt.Errorf("skip: %w", ErrCorrupt)
	}
	_, err := er.Seek(h.endOffset, io.SeekStart)
	return err
}

// AtEnd reports whether pos has reached the given absolute end offset
// (used while iterating a master element's children).
func (er *elementReader) AtEnd(endOffset int64) bool {
	return er.pos >= endOffset
}

// readPayload reads exactly h.size bytes starting at the current
// position (which must equal h.dataOffset) and advances past it.
func (er *elementReader) readPayload(h header) ([]byte, error) {
	if h.unknownSize {
		return nil, fmt.Errorf("read payload: %w", ErrCorrupt)
	}
	data := make([]byte, h.size)
	if h.size > 0 {
		if _, err := io.ReadFull(er.r, data); err != nil {
			return nil, fmt.Errorf("read payload: %w", wrapErr(ErrIO, err))
		}
	}
	er.pos += int64(h.size)
	return data, nil
}

// ReadUint decodes h's payload as a big-endian unsigned integer.
func (er *elementReader) ReadUint(h header) (uint64, error) {
	data, err := er.readPayload(h)
	if err != nil {
		return 0, err
	}
	return decodeUint(data), nil
}

func decodeUint(data []byte) uint64 {
	var v uint64
	for _, b := range data {
		v = (v << 8) | uint64(b)
	}
	return v
}

// ReadInt decodes h's payload as a big-endian two's-complement signed
// integer.
func (er *elementReader) ReadInt(h header) (int64, error) {
	data, err := er.readPayload(h)
	if err != nil {
		return 0, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	negative := data[0]&0x80 != 0
	v := decodeUint(data)
	if !negative {
		return int64(v), nil
	}
	mask := uint64(1)<<(uint(len(data))*8) - 1
	return -int64((^v & mask) + 1), nil
}

// ReadFloat decodes h's payload as a big-endian IEEE-754 float (4 or 8
// bytes).
func (er *elementReader) ReadFloat(h header) (float64, error) {
	data, err := er.readPayload(h)
	if err != nil {
		return 0, err
	}
	switch len(data) {
	case 4:
		return float64(math.Float32frombits(binary.BigEndian.Uint32(data))), nil
	case 8:
		return math.Float64frombits(binary.BigEndian.Uint64(data)), nil
	case 0:
		return 0, nil
	default:
		return 0, fmt.Errorf("read float: %w", ErrCorrupt)
	}
}

// ReadString decodes h's payload as UTF-8 text, stripping every trailing
// NUL pad byte (spec §3: strings are not null-terminated in storage, but
// trailing NUL pad bytes may appear).
func (er *elementReader) ReadString(h header) (string, error) {
	data, err := er.readPayload(h)
	if err != nil {
		return "", err
	}
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data), nil
}

// ReadBinary returns h's payload unmodified.
func (er *elementReader) ReadBinary(h header) ([]byte, error) {
	return er.readPayload(h)
}
