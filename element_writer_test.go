package mkvtag

import (
	"bytes"
	"testing"
)

func roundTripElement(t *testing.T, data []byte) (header, *elementReader) {
	t.Helper()
	er := newElementReader(bytes.NewReader(data))
	h, err := er.ReadHeader()
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	return h, er
}

func TestUintElementRoundTrip(t *testing.T) {
	buf := NewBuffer(nil)
	if err := UintElement(buf, idTagDefault, 0); err != nil {
		t.Fatalf("UintElement: %v", err)
	}
	h, er := roundTripElement(t, buf.Bytes())
	if h.size != 1 {
		t.Errorf("zero value should occupy 1 byte, got size=%d", h.size)
	}
	v, err := er.ReadUint(h)
	if err != nil || v != 0 {
		t.Errorf("v=%d err=%v, want 0,nil", v, err)
	}
}

func TestUintElementNonZero(t *testing.T) {
	buf := NewBuffer(nil)
	if err := UintElement(buf, idTagDefault, 300); err != nil {
		t.Fatalf("UintElement: %v", err)
	}
	h, er := roundTripElement(t, buf.Bytes())
	v, err := er.ReadUint(h)
	if err != nil || v != 300 {
		t.Errorf("v=%d err=%v, want 300,nil", v, err)
	}
}

func TestStringElementRoundTrip(t *testing.T) {
	buf := NewBuffer(nil)
	if err := StringElement(buf, idTagString, "hello world"); err != nil {
		t.Fatalf("StringElement: %v", err)
	}
	h, er := roundTripElement(t, buf.Bytes())
	s, err := er.ReadString(h)
	if err != nil || s != "hello world" {
		t.Errorf("s=%q err=%v, want %q,nil", s, err, "hello world")
	}
}

func TestBinaryElementRoundTrip(t *testing.T) {
	buf := NewBuffer(nil)
	payload := []byte{0x01, 0x02, 0x03}
	if err := BinaryElement(buf, idTagBinary, payload); err != nil {
		t.Fatalf("BinaryElement: %v", err)
	}
	h, er := roundTripElement(t, buf.Bytes())
	got, err := er.ReadBinary(h)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("got=% x, want % x", got, payload)
	}
}

func TestVoidElementExactSize(t *testing.T) {
	buf := NewBuffer(nil)
	if err := VoidElement(buf, 10); err != nil {
		t.Fatalf("VoidElement: %v", err)
	}
	if buf.Len() != 10 {
		t.Errorf("Len() = %d, want 10", buf.Len())
	}
	h, _ := roundTripElement(t, buf.Bytes())
	if h.id != idVoid {
		t.Errorf("id = %#x, want Void", h.id)
	}
}

func TestUintElementSizeMatchesActual(t *testing.T) {
	buf := NewBuffer(nil)
	if err := UintElement(buf, idTagDefault, 12345); err != nil {
		t.Fatalf("UintElement: %v", err)
	}
	estimated := UintElementSize(idTagDefault, 12345)
	if estimated != buf.Len() {
		t.Errorf("estimated=%d actual=%d", estimated, buf.Len())
	}
}
