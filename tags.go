package mkvtag

import (
	"fmt"
	"io"
)

const maxSimpleTagDepth = 32

// Collection is the ordered set of Tag elements parsed from, or destined
// for, a file's Tags element. Order is preserved end to end — a plain
// slice, never a map, mirroring the teacher's own preference for
// document order in parseTrackEntry's accumulation of tracks.
type Collection struct {
	Tags []*Tag
}

// Tag groups SimpleTag entries under a Targets scope.
type Tag struct {
	TargetType     uint8
	TargetTypeStr  string
	TrackUIDs      []uint64
	EditionUIDs    []uint64
	ChapterUIDs    []uint64
	AttachmentUIDs []uint64
	SimpleTags     []*SimpleTag
}

// SimpleTag is one name/value(/binary) pair, possibly with nested
// SimpleTags (e.g. a multi-language title has one nested SimpleTag per
// language).
type SimpleTag struct {
	Name      string
	Value     *string
	Binary    []byte
	Language  string
	IsDefault bool
	Nested    []*SimpleTag
}

// newTag returns a Tag with its documented defaults: TargetType 50
// (Album), no UIDs, no SimpleTags.
func newTag() *Tag {
	return &Tag{TargetType: 50}
}

// newSimpleTag returns a SimpleTag with its documented defaults:
// Language "und", IsDefault true.
func newSimpleTag() *SimpleTag {
	return &SimpleTag{Language: "und", IsDefault: true}
}

// ParseTags reads a Tags element's payload (the element's children,
// starting immediately at h.dataOffset) into a Collection. This fills
// the gap the teacher's parseTags leaves as "// Skip for now", using the
// same recursive-descent, switch-on-ID style the teacher applies to
// parseTrackEntry/parseVideoTrack/parseAudioTrack.
func ParseTags(er *elementReader, h header) (*Collection, error) {
	c := &Collection{}
	for er.Position() < h.endOffset {
		child, err := er.ReadHeader()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("parse Tags: %w", err)
		}
		if child.id != idTag {
			if err := er.Skip(child); err != nil {
				return nil, err
			}
			continue
		}
		tag, err := parseTag(er, child)
		if err != nil {
			return nil, err
		}
		c.Tags = append(c.Tags, tag)
	}
	return c, nil
}

func parseTag(er *elementReader, h header) (*Tag, error) {
	tag := newTag()
	for er.Position() < h.endOffset {
		child, err := er.ReadHeader()
		if err != nil {
			return nil, fmt.Errorf("parse Tag: %w", err)
		}
		switch child.id {
		case idTargets:
			if err := parseTargets(er, child, tag); err != nil {
				return nil, err
			}
		case idSimpleTag:
			st, err := parseSimpleTag(er, child, 0)
			if err != nil {
				return nil, err
			}
			tag.SimpleTags = append(tag.SimpleTags, st)
		default:
			if err := er.Skip(child); err != nil {
				return nil, err
			}
		}
	}
	return tag, nil
}

func parseTargets(er *elementReader, h header, tag *Tag) error {
	for er.Position() < h.endOffset {
		child, err := er.ReadHeader()
		if err != nil {
			return fmt.Errorf("parse Targets: %w", err)
		}
		switch child.id {
		case idTargetTypeValue:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			tag.TargetType = uint8(v)
		case idTargetType:
			s, err := er.ReadString(child)
			if err != nil {
				return err
			}
			tag.TargetTypeStr = s
		case idTagTrackUID:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			tag.TrackUIDs = append(tag.TrackUIDs, v)
		case idTagEditionUID:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			tag.EditionUIDs = append(tag.EditionUIDs, v)
		case idTagChapterUID:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			tag.ChapterUIDs = append(tag.ChapterUIDs, v)
		case idTagAttachmentUID:
			v, err := er.ReadUint(child)
			if err != nil {
				return err
			}
			tag.AttachmentUIDs = append(tag.AttachmentUIDs, v)
		default:
			if err := er.Skip(child); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseSimpleTag(er *elementReader, h header, depth int) (*SimpleTag, error) {
	if depth > maxSimpleTagDepth {
		return nil, fmt.Errorf("SimpleTag nesting exceeds %d: %w", maxSimpleTagDepth, ErrCorrupt)
	}
	st := newSimpleTag()
	for er.Position() < h.endOffset {
		child, err := er.ReadHeader()
		if err != nil {
			return nil, fmt.Errorf("parse SimpleTag: %w", err)
		}
		switch child.id {
		case idTagName:
			s, err := er.ReadString(child)
			if err != nil {
				return nil, err
			}
			st.Name = s
		case idTagLanguage, idTagLanguageBCP47:
			s, err := er.ReadString(child)
			if err != nil {
				return nil, err
			}
			st.Language = s
		case idTagDefault:
			v, err := er.ReadUint(child)
			if err != nil {
				return nil, err
			}
			st.IsDefault = v != 0
		case idTagString:
			s, err := er.ReadString(child)
			if err != nil {
				return nil, err
			}
			st.Value = &s
		case idTagBinary:
			b, err := er.ReadBinary(child)
			if err != nil {
				return nil, err
			}
			st.Binary = b
		case idSimpleTag:
			nested, err := parseSimpleTag(er, child, depth+1)
			if err != nil {
				return nil, err
			}
			st.Nested = append(st.Nested, nested)
		default:
			if err := er.Skip(child); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

// Serialize encodes c back into a complete Tags element (ID, size, and
// children) written into buf.
func (c *Collection) Serialize(buf *Buffer) error {
	body := NewBuffer(buf.alloc)
	for _, tag := range c.Tags {
		if err := serializeTag(body, tag); err != nil {
			return err
		}
	}
	return writeMasterWithBody(buf, idTags, body)
}

func serializeTag(buf *Buffer, tag *Tag) error {
	body := NewBuffer(buf.alloc)
	if err := serializeTargets(body, tag); err != nil {
		return err
	}
	for _, st := range tag.SimpleTags {
		if err := serializeSimpleTag(body, st); err != nil {
			return err
		}
	}
	return writeMasterWithBody(buf, idTag, body)
}

func serializeTargets(buf *Buffer, tag *Tag) error {
	body := NewBuffer(buf.alloc)
	body.Grow(targetsBodySize(tag))
	if err := UintElement(body, idTargetTypeValue, uint64(tag.TargetType)); err != nil {
		return err
	}
	if tag.TargetTypeStr != "" {
		if err := StringElement(body, idTargetType, tag.TargetTypeStr); err != nil {
			return err
		}
	}
	for _, uid := range tag.TrackUIDs {
		if err := UintElement(body, idTagTrackUID, uid); err != nil {
			return err
		}
	}
	for _, uid := range tag.EditionUIDs {
		if err := UintElement(body, idTagEditionUID, uid); err != nil {
			return err
		}
	}
	for _, uid := range tag.ChapterUIDs {
		if err := UintElement(body, idTagChapterUID, uid); err != nil {
			return err
		}
	}
	for _, uid := range tag.AttachmentUIDs {
		if err := UintElement(body, idTagAttachmentUID, uid); err != nil {
			return err
		}
	}
	return writeMasterWithBody(buf, idTargets, body)
}

// targetsBodySize pre-computes serializeTargets' body size so it can Grow
// its scratch Buffer once instead of doubling repeatedly — Targets can
// carry an unbounded number of UID entries (one per linked track/edition/
// chapter/attachment).
func targetsBodySize(tag *Tag) int {
	size := UintElementSize(idTargetTypeValue, uint64(tag.TargetType))
	if tag.TargetTypeStr != "" {
		size += StringElementSize(idTargetType, tag.TargetTypeStr)
	}
	for _, uid := range tag.TrackUIDs {
		size += UintElementSize(idTagTrackUID, uid)
	}
	for _, uid := range tag.EditionUIDs {
		size += UintElementSize(idTagEditionUID, uid)
	}
	for _, uid := range tag.ChapterUIDs {
		size += UintElementSize(idTagChapterUID, uid)
	}
	for _, uid := range tag.AttachmentUIDs {
		size += UintElementSize(idTagAttachmentUID, uid)
	}
	return size
}

func serializeSimpleTag(buf *Buffer, st *SimpleTag) error {
	body := NewBuffer(buf.alloc)
	estimate := StringElementSize(idTagName, st.Name)
	if st.Language != "" {
		estimate += StringElementSize(idTagLanguage, st.Language)
	}
	if !st.IsDefault {
		estimate += UintElementSize(idTagDefault, 0)
	}
	if st.Value != nil {
		estimate += StringElementSize(idTagString, *st.Value)
	}
	if st.Binary != nil {
		estimate += BinaryElementSize(idTagBinary, st.Binary)
	}
	body.Grow(estimate)
	if err := StringElement(body, idTagName, st.Name); err != nil {
		return err
	}
	if st.Language != "" {
		if err := StringElement(body, idTagLanguage, st.Language); err != nil {
			return err
		}
	}
	// TagDefault defaults to true; omit it on round-trip and only write
	// it to record an explicit false (spec §9: round-tripping omits
	// defaulted fields).
	if !st.IsDefault {
		if err := UintElement(body, idTagDefault, 0); err != nil {
			return err
		}
	}
	if st.Value != nil {
		if err := StringElement(body, idTagString, *st.Value); err != nil {
			return err
		}
	}
	if st.Binary != nil {
		if err := BinaryElement(body, idTagBinary, st.Binary); err != nil {
			return err
		}
	}
	for _, nested := range st.Nested {
		if err := serializeSimpleTag(body, nested); err != nil {
			return err
		}
	}
	return writeMasterWithBody(buf, idSimpleTag, body)
}

// writeMasterWithBody writes id's header sized to body's current contents,
// then appends body, into buf. Named distinctly from MasterHeader (which
// takes a pre-known size) because every master-element serializer here
// builds its children into a scratch Buffer first to learn their size.
func writeMasterWithBody(buf *Buffer, id uint32, body *Buffer) error {
	if err := MasterHeader(buf, id, uint64(body.Len())); err != nil {
		return err
	}
	buf.Write(body.Bytes())
	return nil
}
