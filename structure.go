package mkvtag

import (
	"fmt"
	"io"
)

const seekEntryCacheCap = 32

// voidRegion records one Void element's location, so the write planner
// can pick the largest candidate for Strategy B without rescanning.
type voidRegion struct {
	offset int64
	size   int64 // total size, header included
}

// Index is the parsed container structure: the EBML header fields, the
// segment's own bounds, and the byte offsets of every top-level child the
// planner or façade might need, merged from two sources — a sequential
// scan up to the first Cluster, and (if present) the SeekHead directory.
// This generalizes the teacher's parseHeader/parseSegment/
// parseSegmentChildren, which parse child elements fully; here, only
// offsets are recorded; nothing eagerly materializes track, chapter, or
// attachment payloads.
type Index struct {
	EBMLVersion            uint64
	ReadVersion            uint64
	DocType                string
	DocTypeVersion         uint64
	DocTypeReadVersion     uint64
	SegmentHeaderOffset    int64
	SegmentDataOffset      int64
	SegmentSize            uint64
	SegmentSizeLen         int
	SegmentUnknownSize     bool
	KnownOffsets           map[uint32]int64
	LargestVoid            voidRegion
	hasLargestVoid         bool
}

// BuildIndex parses the EBML header and scans the segment's top-level
// children up to (but not including) the first Cluster, then follows the
// SeekHead (if one was found) to merge in any entries the scan missed —
// mirroring the teacher's stop-at-first-Cluster behavior in
// parseSegmentChildren, generalized with the SeekHead follow-up the
// teacher's demuxer never performs at all.
func BuildIndex(r io.ReadSeeker) (*Index, error) {
	er := newElementReader(r)

	idx := &Index{KnownOffsets: make(map[uint32]int64)}

	h, err := er.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("read EBML header: %w", err)
	}
	if h.id != idEBMLHeader {
		return nil, fmt.Errorf("read EBML header: %w", ErrNotEBML)
	}
	if err := parseEBMLHeaderBody(er, h, idx); err != nil {
		return nil, err
	}
	if idx.DocType != "matroska" && idx.DocType != "webm" {
		return nil, fmt.Errorf("doc type %q: %w", idx.DocType, ErrNotMatroska)
	}

	segHeader, err := er.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("read segment header: %w", err)
	}
	if segHeader.id != idSegment {
		return nil, fmt.Errorf("expected Segment element, got %#x: %w", segHeader.id, ErrCorrupt)
	}
	idx.SegmentHeaderOffset = segHeader.dataOffset - int64(segHeader.idLen) - int64(segHeader.sizeLen)
	idx.SegmentDataOffset = segHeader.dataOffset
	idx.SegmentSize = segHeader.size
	idx.SegmentSizeLen = segHeader.sizeLen
	idx.SegmentUnknownSize = segHeader.unknownSize

	segmentEnd := segHeader.endOffset
	if segHeader.unknownSize {
		// Unknown-size segments run to EOF; the scan below stops at the
		// first Cluster regardless, so an exact end offset is unneeded
		// for locating Tags.
		end, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("seek end: %w", wrapErr(ErrIO, err))
		}
		segmentEnd = end
		if _, err := er.Seek(segHeader.dataOffset, io.SeekStart); err != nil {
			return nil, err
		}
	}

	var seekHeadHeader *header
	for er.Position() < segmentEnd {
		childHeader, err := er.ReadHeader()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("scan segment children: %w", err)
		}
		headerStart := childHeader.dataOffset - int64(childHeader.idLen) - int64(childHeader.sizeLen)

		switch childHeader.id {
		case idCluster:
			// Media begins here; nothing past this point is ever touched.
			goto scanDone
		case idVoid:
			size := childHeader.endOffset - headerStart
			if !idx.hasLargestVoid || size > idx.LargestVoid.size {
				idx.LargestVoid = voidRegion{offset: headerStart, size: size}
				idx.hasLargestVoid = true
			}
			idx.KnownOffsets[childHeader.id] = headerStart
		case idSeekHead:
			h := childHeader
			seekHeadHeader = &h
			idx.KnownOffsets[childHeader.id] = headerStart
		default:
			idx.KnownOffsets[childHeader.id] = headerStart
		}

		if err := er.Skip(childHeader); err != nil {
			return nil, fmt.Errorf("skip %#x: %w", childHeader.id, err)
		}
	}
scanDone:

	if seekHeadHeader != nil {
		if err := mergeSeekHead(er, segHeader.dataOffset, *seekHeadHeader, idx); err != nil {
			return nil, fmt.Errorf("merge SeekHead: %w", err)
		}
	}

	return idx, nil
}

func parseEBMLHeaderBody(er *elementReader, h header, idx *Index) error {
	end := h.endOffset
	for er.Position() < end {
		child, err := er.ReadHeader()
		if err != nil {
			return fmt.Errorf("EBML header child: %w", err)
		}
		switch child.id {
		case idEBMLVersion:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			idx.EBMLVersion = v
		case idEBMLReadVersion:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			idx.ReadVersion = v
		case idEBMLDocType:
			s, err := er.ReadString(child)
			if err != nil {
				return err
			}
			idx.DocType = s
		case idEBMLDocTypeVersion:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			idx.DocTypeVersion = v
		case idEBMLDocTypeReadVersion:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			idx.DocTypeReadVersion = v
		default:
			if err := er.Skip(child); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeSeekHead reads every Seek entry in the already-located SeekHead
// element and merges the (ID, segment-relative position) pairs into
// idx.KnownOffsets, favoring the SeekHead's own claim over whatever the
// scan recorded (the SeekHead is the document's own authoritative
// directory; a scan-discovered offset for the same ID can only disagree
// if the file was hand-edited inconsistently, in which case trusting the
// directory the player itself consults is the safer default). Stops
// after seekEntryCacheCap entries to bound work on a pathological
// SeekHead; remaining entries are left to the scan's own offsets.
func mergeSeekHead(er *elementReader, segmentDataOffset int64, sh header, idx *Index) error {
	if _, err := er.Seek(sh.dataOffset, io.SeekStart); err != nil {
		return err
	}

	seen := 0
	for er.Position() < sh.endOffset && seen < seekEntryCacheCap {
		seekHeader, err := er.ReadHeader()
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read Seek entry: %w", err)
		}
		if seekHeader.id != idSeek {
			if err := er.Skip(seekHeader); err != nil {
				return err
			}
			continue
		}

		var entryID uint32
		var entryPos int64
		haveID, havePos := false, false
		for er.Position() < seekHeader.endOffset {
			field, err := er.ReadHeader()
			if err != nil {
				return fmt.Errorf("read Seek field: %w", err)
			}
			switch field.id {
			case idSeekID:
				v, err := er.ReadUint(field)
				if err != nil {
					return err
				}
				entryID = uint32(v)
				haveID = true
			case idSeekPos:
				v, err := er.ReadUint(field)
				if err != nil {
					return err
				}
				entryPos = int64(v)
				havePos = true
			default:
				if err := er.Skip(field); err != nil {
					return err
				}
			}
		}
		if haveID && havePos {
			idx.KnownOffsets[entryID] = segmentDataOffset + entryPos
		}
		seen++
	}
	return nil
}
