package mkvtag

import (
	"bytes"
	"io"
	"testing"
)

func TestTagTreeRoundTrip(t *testing.T) {
	title := "My Title"
	c := &Collection{
		Tags: []*Tag{
			{
				TargetType: 50,
				TrackUIDs:  []uint64{123},
				SimpleTags: []*SimpleTag{
					{Name: "TITLE", Value: &title, Language: "eng", IsDefault: true},
				},
			},
		},
	}

	buf := NewBuffer(nil)
	if err := c.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	er := newElementReader(bytes.NewReader(buf.Bytes()))
	h, err := er.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.id != idTags {
		t.Fatalf("id = %#x, want Tags", h.id)
	}

	got, err := ParseTags(er, h)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	if len(got.Tags) != 1 {
		t.Fatalf("len(Tags) = %d, want 1", len(got.Tags))
	}
	tag := got.Tags[0]
	if tag.TargetType != 50 {
		t.Errorf("TargetType = %d, want 50", tag.TargetType)
	}
	if len(tag.TrackUIDs) != 1 || tag.TrackUIDs[0] != 123 {
		t.Errorf("TrackUIDs = %v, want [123]", tag.TrackUIDs)
	}
	if len(tag.SimpleTags) != 1 {
		t.Fatalf("len(SimpleTags) = %d, want 1", len(tag.SimpleTags))
	}
	st := tag.SimpleTags[0]
	if st.Name != "TITLE" {
		t.Errorf("Name = %q, want TITLE", st.Name)
	}
	if st.Value == nil || *st.Value != "My Title" {
		t.Errorf("Value = %v, want My Title", st.Value)
	}
	if st.Language != "eng" {
		t.Errorf("Language = %q, want eng", st.Language)
	}
	if !st.IsDefault {
		t.Error("IsDefault = false, want true")
	}
}

func TestSimpleTagDefaults(t *testing.T) {
	st := newSimpleTag()
	if st.Language != "und" {
		t.Errorf("Language = %q, want und", st.Language)
	}
	if !st.IsDefault {
		t.Error("IsDefault = false, want true")
	}
}

func TestTagDefaults(t *testing.T) {
	tag := newTag()
	if tag.TargetType != 50 {
		t.Errorf("TargetType = %d, want 50", tag.TargetType)
	}
}

// childIDs walks h's immediate children and returns the set of element
// IDs encountered, for asserting a field's presence/absence without
// depending on exact byte layout.
func childIDs(t *testing.T, data []byte, h header) map[uint32]bool {
	t.Helper()
	er := newElementReader(bytes.NewReader(data))
	if _, err := er.Seek(h.dataOffset, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	ids := map[uint32]bool{}
	for er.Position() < h.endOffset {
		child, err := er.ReadHeader()
		if err != nil {
			t.Fatalf("ReadHeader: %v", err)
		}
		ids[child.id] = true
		if err := er.Skip(child); err != nil {
			t.Fatalf("Skip: %v", err)
		}
	}
	return ids
}

func TestSerializeSimpleTagOmitsDefaultedTagDefault(t *testing.T) {
	val := "My Title"
	defaulted := &SimpleTag{Name: "TITLE", Value: &val, IsDefault: true}
	notDefaulted := &SimpleTag{Name: "TITLE", Value: &val, IsDefault: false}

	defaultedBuf := NewBuffer(nil)
	if err := serializeSimpleTag(defaultedBuf, defaulted); err != nil {
		t.Fatalf("serializeSimpleTag(IsDefault=true): %v", err)
	}
	notDefaultedBuf := NewBuffer(nil)
	if err := serializeSimpleTag(notDefaultedBuf, notDefaulted); err != nil {
		t.Fatalf("serializeSimpleTag(IsDefault=false): %v", err)
	}

	defaultedHeader, err := newElementReader(bytes.NewReader(defaultedBuf.Bytes())).ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader(defaulted): %v", err)
	}
	if ids := childIDs(t, defaultedBuf.Bytes(), defaultedHeader); ids[idTagDefault] {
		t.Errorf("IsDefault=true SimpleTag has a TagDefault child, want it omitted")
	}

	notDefaultedHeader, err := newElementReader(bytes.NewReader(notDefaultedBuf.Bytes())).ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader(notDefaulted): %v", err)
	}
	if ids := childIDs(t, notDefaultedBuf.Bytes(), notDefaultedHeader); !ids[idTagDefault] {
		t.Errorf("IsDefault=false SimpleTag missing TagDefault child, want it present")
	}

	// Round-trip: an explicit false survives parsing.
	er := newElementReader(bytes.NewReader(notDefaultedBuf.Bytes()))
	h, err := er.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := parseSimpleTag(er, h, 0)
	if err != nil {
		t.Fatalf("parseSimpleTag: %v", err)
	}
	if got.IsDefault {
		t.Error("round-tripped IsDefault = true, want false")
	}
}

func TestParseSimpleTagNested(t *testing.T) {
	val1 := "Titre"
	val2 := "Title"
	tag := &Tag{
		TargetType: 50,
		SimpleTags: []*SimpleTag{
			{
				Name:     "TITLE",
				Value:    &val2,
				Language: "eng",
				Nested: []*SimpleTag{
					{Name: "TITLE", Value: &val1, Language: "fre"},
				},
			},
		},
	}
	c := &Collection{Tags: []*Tag{tag}}

	buf := NewBuffer(nil)
	if err := c.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	er := newElementReader(bytes.NewReader(buf.Bytes()))
	h, err := er.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	got, err := ParseTags(er, h)
	if err != nil {
		t.Fatalf("ParseTags: %v", err)
	}
	st := got.Tags[0].SimpleTags[0]
	if len(st.Nested) != 1 {
		t.Fatalf("len(Nested) = %d, want 1", len(st.Nested))
	}
	if st.Nested[0].Language != "fre" {
		t.Errorf("Nested[0].Language = %q, want fre", st.Nested[0].Language)
	}
}

func TestParseSimpleTagDepthGuard(t *testing.T) {
	// Build a SimpleTag nested maxSimpleTagDepth+2 levels deep directly
	// via the parser's internal recursion, bypassing Serialize (which
	// would itself recurse unboundedly) by hand-assembling bytes.
	buf := NewBuffer(nil)
	innermost := NewBuffer(nil)
	StringElement(innermost, idTagName, "X")
	current := innermost
	for i := 0; i < maxSimpleTagDepth+2; i++ {
		wrapped := NewBuffer(nil)
		StringElement(wrapped, idTagName, "X")
		wrapped.Write(wrapMaster(idSimpleTag, current.Bytes()))
		current = wrapped
	}
	buf.Write(wrapMaster(idTags, wrapMaster(idTag, wrapMaster(idSimpleTag, current.Bytes()))))

	er := newElementReader(bytes.NewReader(buf.Bytes()))
	h, err := er.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	_, err = ParseTags(er, h)
	if err == nil {
		t.Fatal("expected depth guard error")
	}
}

func wrapMaster(id uint32, body []byte) []byte {
	buf := NewBuffer(nil)
	MasterHeader(buf, id, uint64(len(body)))
	buf.Write(body)
	return buf.Bytes()
}
