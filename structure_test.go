package mkvtag

import (
	"bytes"
	"testing"
)

// buildMinimalContainer assembles a tiny synthetic EBML/Matroska stream:
// EBML header (DocType "matroska") + Segment{Info, Void, Tags, Cluster}.
// It returns the bytes and the byte offset of the Tags element's header
// start, for assertions.
func buildMinimalContainer(t *testing.T) ([]byte, int64) {
	t.Helper()

	ebmlHeader := NewBuffer(nil)
	docType := NewBuffer(nil)
	if err := StringElement(docType, idEBMLDocType, "matroska"); err != nil {
		t.Fatalf("StringElement: %v", err)
	}
	if err := MasterHeader(ebmlHeader, idEBMLHeader, uint64(docType.Len())); err != nil {
		t.Fatalf("MasterHeader: %v", err)
	}
	ebmlHeader.Write(docType.Bytes())

	info := NewBuffer(nil)
	if err := UintElement(info, idTimestampScaleConst, 1000000); err != nil {
		t.Fatalf("UintElement: %v", err)
	}
	infoElem := NewBuffer(nil)
	MasterHeader(infoElem, idInfo, uint64(info.Len()))
	infoElem.Write(info.Bytes())

	voidElem := NewBuffer(nil)
	if err := VoidElement(voidElem, 12); err != nil {
		t.Fatalf("VoidElement: %v", err)
	}

	tags := NewBuffer(nil)
	if err := StringElement(tags, idTagString, "placeholder"); err != nil {
		t.Fatalf("StringElement: %v", err)
	}
	tagsElem := NewBuffer(nil)
	MasterHeader(tagsElem, idTags, uint64(tags.Len()))
	tagsElem.Write(tags.Bytes())

	cluster := NewBuffer(nil)
	MasterHeader(cluster, idCluster, 0)

	segmentChildren := NewBuffer(nil)
	segmentChildren.Write(infoElem.Bytes())
	segmentChildren.Write(voidElem.Bytes())
	tagsOffsetInSegmentChildren := segmentChildren.Len()
	segmentChildren.Write(tagsElem.Bytes())
	segmentChildren.Write(cluster.Bytes())

	segment := NewBuffer(nil)
	MasterHeader(segment, idSegment, uint64(segmentChildren.Len()))
	segmentHeaderLen := segment.Len()
	segment.Write(segmentChildren.Bytes())

	full := NewBuffer(nil)
	full.Write(ebmlHeader.Bytes())
	segmentStart := full.Len()
	full.Write(segment.Bytes())

	tagsHeaderOffset := int64(segmentStart + segmentHeaderLen + tagsOffsetInSegmentChildren)
	return full.Bytes(), tagsHeaderOffset
}

const idTimestampScaleConst = 0x2AD7B1

func TestBuildIndexLocatesTags(t *testing.T) {
	data, wantTagsOffset := buildMinimalContainer(t)
	idx, err := BuildIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if idx.DocType != "matroska" {
		t.Errorf("DocType = %q, want matroska", idx.DocType)
	}
	got, ok := idx.KnownOffsets[idTags]
	if !ok {
		t.Fatalf("Tags not found in KnownOffsets")
	}
	if got != wantTagsOffset {
		t.Errorf("Tags offset = %d, want %d", got, wantTagsOffset)
	}
}

func TestBuildIndexRejectsNonEBML(t *testing.T) {
	_, err := BuildIndex(bytes.NewReader([]byte("not ebml at all")))
	if err == nil {
		t.Fatal("expected error for non-EBML input")
	}
}

func TestBuildIndexTracksLargestVoid(t *testing.T) {
	data, _ := buildMinimalContainer(t)
	idx, err := BuildIndex(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if idx.LargestVoid.size != 12 {
		t.Errorf("LargestVoid.size = %d, want 12", idx.LargestVoid.size)
	}
}
