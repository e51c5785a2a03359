package mkvtag

import "io"

// updateSeekHead rewrites the Tags entry's SeekPosition payload in place,
// per spec §4.7's in-place-only policy: the entry's byte width never
// changes. If newTagsOffset doesn't fit that width, the update is
// silently skipped (widening would shift every byte after the SeekHead,
// defeating the purpose of an in-place tag edit). If no SeekHead or no
// Tags entry exists, this is a no-op — the library never adds an entry,
// since that too would change SeekHead's own content size.
func updateSeekHead(src *fileSource, idx *Index, newTagsOffset int64) error {
	seekHeadOffset, ok := idx.KnownOffsets[idSeekHead]
	if !ok {
		return nil
	}
	seekHeadHeader, err := readHeaderAt(src, seekHeadOffset)
	if err != nil {
		return err
	}

	newRelPos := newTagsOffset - idx.SegmentDataOffset

	er := newElementReader(src)
	if _, err := er.Seek(seekHeadHeader.dataOffset, io.SeekStart); err != nil {
		return err
	}

	for er.Position() < seekHeadHeader.endOffset {
		entryHeader, err := er.ReadHeader()
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		if entryHeader.id != idSeek {
			if err := er.Skip(entryHeader); err != nil {
				return err
			}
			continue
		}

		var targetID uint32
		var posHeader header
		havePosHeader := false
		for er.Position() < entryHeader.endOffset {
			field, err := er.ReadHeader()
			if err != nil {
				return err
			}
			switch field.id {
			case idSeekID:
				v, err := er.ReadUint(field)
				if err != nil {
					return err
				}
				targetID = uint32(v)
			case idSeekPos:
				posHeader = field
				havePosHeader = true
				if err := er.Skip(field); err != nil {
					return err
				}
			default:
				if err := er.Skip(field); err != nil {
					return err
				}
			}
		}

		if targetID == idTags && havePosHeader {
			encoded, err := encodeUintFixed(uint64(newRelPos), int(posHeader.size))
			if err != nil {
				// Overflow at the existing width: skip silently, per §4.7.
				return nil
			}
			if _, err := src.WriteAt(encoded, posHeader.dataOffset); err != nil {
				return wrapErr(ErrWriteStep, err)
			}
			return nil
		}
	}

	return nil
}
