package mkvtag

import (
	"fmt"
	"io"
)

// Plan records which strategy planAndWrite took and where the Tags
// element ended up. WriteTags does not pass it on to its caller.
type Plan struct {
	Strategy     string // "A", "B", or "C"
	TagsOffset   int64
	BytesWritten int
}

// readHeaderAt seeks src to offset (a header-start offset, per the
// Index.KnownOffsets convention) and reads the element header there.
func readHeaderAt(src *fileSource, offset int64) (header, error) {
	er := newElementReader(src)
	if _, err := er.Seek(offset, io.SeekStart); err != nil {
		return header{}, err
	}
	return er.ReadHeader()
}

// planAndWrite drives the write planner's three-strategy decision
// procedure, grounded directly on spec §4.6: try Strategy A (overwrite
// in place, coalescing an immediately adjacent Void), then Strategy B
// (fill the largest recorded non-adjacent Void), then Strategy C (append
// past the segment end with a segment-size rewrite). It mutates idx in
// place to reflect the new Tags location so a subsequent write in the
// same session sees up-to-date offsets.
func planAndWrite(src *fileSource, idx *Index, newTagsBytes []byte, alloc Allocator) (*Plan, error) {
	newLen := int64(len(newTagsBytes))

	if existingOffset, ok := idx.KnownOffsets[idTags]; ok {
		existingHeader, err := readHeaderAt(src, existingOffset)
		if err != nil {
			return nil, fmt.Errorf("read existing Tags header: %w", err)
		}
		available := existingHeader.endOffset - existingOffset
		coalescedVoidOffset := existingHeader.endOffset

		voidHeader, voidErr := readHeaderAt(src, coalescedVoidOffset)
		hasCoalescedVoid := voidErr == nil && voidHeader.id == idVoid
		if hasCoalescedVoid {
			available += voidHeader.endOffset - coalescedVoidOffset
		}

		if newLen <= available {
			plan, err := executeOverwrite(src, "A", existingOffset, available, newTagsBytes, alloc)
			if err != nil {
				return nil, err
			}
			if err := updateSeekHead(src, idx, existingOffset); err != nil {
				return nil, fmt.Errorf("update SeekHead: %w", err)
			}
			if err := src.Sync(); err != nil {
				return nil, err
			}
			idx.KnownOffsets[idTags] = existingOffset
			return plan, nil
		}

		// Strategy B candidate: the largest recorded Void, provided it
		// isn't the one Strategy A already considered (coalescing it would
		// double count the same bytes).
		if idx.hasLargestVoid && idx.LargestVoid.offset != coalescedVoidOffset {
			if newLen <= idx.LargestVoid.size {
				plan, err := executeOverwrite(src, "B", idx.LargestVoid.offset, idx.LargestVoid.size, newTagsBytes, alloc)
				if err != nil {
					return nil, err
				}
				if err := updateSeekHead(src, idx, idx.LargestVoid.offset); err != nil {
					return nil, fmt.Errorf("update SeekHead: %w", err)
				}
				if err := src.Sync(); err != nil {
					return nil, err
				}
				idx.KnownOffsets[idTags] = idx.LargestVoid.offset
				return plan, nil
			}
		}

		return executeAppend(src, idx, newTagsBytes, &existingOffset, existingHeader.endOffset-existingOffset, alloc)
	}

	// No existing Tags element: Strategy B still applies against any
	// recorded Void, then Strategy C.
	if idx.hasLargestVoid && newLen <= idx.LargestVoid.size {
		plan, err := executeOverwrite(src, "B", idx.LargestVoid.offset, idx.LargestVoid.size, newTagsBytes, alloc)
		if err != nil {
			return nil, err
		}
		if err := updateSeekHead(src, idx, idx.LargestVoid.offset); err != nil {
			return nil, fmt.Errorf("update SeekHead: %w", err)
		}
		if err := src.Sync(); err != nil {
			return nil, err
		}
		idx.KnownOffsets[idTags] = idx.LargestVoid.offset
		return plan, nil
	}

	return executeAppend(src, idx, newTagsBytes, nil, 0, alloc)
}

// executeOverwrite writes newTagsBytes at offset (which has available
// bytes of room) and pads the remainder per spec §4.6: a single Void
// element when the remainder is at least 2 bytes, a single raw zero byte
// when the remainder is exactly 1, nothing when the remainder is 0.
func executeOverwrite(src *fileSource, strategy string, offset int64, available int64, newTagsBytes []byte, alloc Allocator) (*Plan, error) {
	if _, err := src.WriteAt(newTagsBytes, offset); err != nil {
		return nil, fmt.Errorf("write Tags: %w", wrapErr(ErrWriteStep, err))
	}
	remainder := available - int64(len(newTagsBytes))
	padOffset := offset + int64(len(newTagsBytes))
	switch {
	case remainder == 0:
		// optimal: nothing to pad.
	case remainder == 1:
		if _, err := src.WriteAt([]byte{0}, padOffset); err != nil {
			return nil, fmt.Errorf("write one-byte pad: %w", wrapErr(ErrWriteStep, err))
		}
	case remainder >= 2:
		buf := NewBuffer(alloc)
		if err := VoidElement(buf, int(remainder)); err != nil {
			return nil, fmt.Errorf("build pad Void: %w", err)
		}
		if _, err := src.WriteAt(buf.Bytes(), padOffset); err != nil {
			return nil, fmt.Errorf("write pad Void: %w", wrapErr(ErrWriteStep, err))
		}
	}
	if err := src.Sync(); err != nil {
		return nil, err
	}
	return &Plan{Strategy: strategy, TagsOffset: offset, BytesWritten: len(newTagsBytes)}, nil
}

// executeAppend implements Strategy C: rewrite the segment size (if
// known) at its existing VINT width, write the new Tags element past the
// current segment end, void out the old Tags region if one existed, then
// update SeekHead and fsync — in that exact order, matching spec §4.6
// step 1-6 and the ordering invariant in §5.
func executeAppend(src *fileSource, idx *Index, newTagsBytes []byte, oldTagsOffset *int64, oldTagsSize int64, alloc Allocator) (*Plan, error) {
	var segmentContentEnd int64
	if idx.SegmentUnknownSize {
		size, err := src.Size()
		if err != nil {
			return nil, err
		}
		segmentContentEnd = size
	} else {
		segmentContentEnd = idx.SegmentDataOffset + int64(idx.SegmentSize)

		newSegmentSize := idx.SegmentSize + uint64(len(newTagsBytes))
		sizeBytes, err := EncodeVintFixed(newSegmentSize, idx.SegmentSizeLen)
		if err != nil {
			return nil, fmt.Errorf("rewrite segment size: %w", wrapErr(ErrNoSpace, err))
		}
		segmentSizeOffset := idx.SegmentDataOffset - int64(idx.SegmentSizeLen)
		if _, err := src.WriteAt(sizeBytes, segmentSizeOffset); err != nil {
			return nil, fmt.Errorf("write segment size: %w", wrapErr(ErrWriteStep, err))
		}
		idx.SegmentSize = newSegmentSize
	}

	if _, err := src.WriteAt(newTagsBytes, segmentContentEnd); err != nil {
		return nil, fmt.Errorf("write appended Tags: %w", wrapErr(ErrWriteStep, err))
	}

	if oldTagsOffset != nil && oldTagsSize >= 2 {
		buf := NewBuffer(alloc)
		if err := VoidElement(buf, int(oldTagsSize)); err != nil {
			return nil, fmt.Errorf("void out old Tags: %w", err)
		}
		if _, err := src.WriteAt(buf.Bytes(), *oldTagsOffset); err != nil {
			return nil, fmt.Errorf("write old-Tags void: %w", wrapErr(ErrWriteStep, err))
		}
	}

	idx.KnownOffsets[idTags] = segmentContentEnd
	if err := updateSeekHead(src, idx, segmentContentEnd); err != nil {
		return nil, fmt.Errorf("update SeekHead: %w", err)
	}

	if err := src.Sync(); err != nil {
		return nil, err
	}

	return &Plan{Strategy: "C", TagsOffset: segmentContentEnd, BytesWritten: len(newTagsBytes)}, nil
}
