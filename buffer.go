package mkvtag

// Allocator is the Go-native translation of the capability hook a caller
// can supply to observe or control every Buffer growth this package
// performs while assembling a tag tree for serialization; small
// fixed-size scratch slices (encoded IDs and integers) are still made
// with make. Most callers never need
// one; the zero value of Context uses defaultAllocator.
type Allocator interface {
	// Alloc returns a new slice of length 0 and capacity at least n.
	Alloc(n int) []byte
}

type defaultAllocator struct{}

func (defaultAllocator) Alloc(n int) []byte {
	return make([]byte, 0, n)
}

// Buffer is a growable byte buffer in the style of bytes.Buffer, except
// that it grows through a caller-supplied Allocator and exposes Detach
// for transferring ownership of its backing array without a copy.
type Buffer struct {
	buf   []byte
	alloc Allocator
}

// NewBuffer returns an empty Buffer that grows through alloc. A nil
// alloc uses the package default (make-based) allocator.
func NewBuffer(alloc Allocator) *Buffer {
	if alloc == nil {
		alloc = defaultAllocator{}
	}
	return &Buffer{alloc: alloc}
}

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Bytes returns the buffer's contents. The slice is valid until the next
// mutating call on b.
func (b *Buffer) Bytes() []byte {
	return b.buf
}

// Grow ensures the buffer can accept n more bytes without reallocating.
func (b *Buffer) Grow(n int) {
	b.grow(n)
}

// grow mirrors bytes.Buffer's doubling growth policy: if the requested
// capacity exceeds what's left, a new backing array of at least double
// the current capacity (or exactly what's needed, if larger) is
// obtained through the allocator and the existing bytes are copied over.
func (b *Buffer) grow(n int) {
	if cap(b.buf)-len(b.buf) >= n {
		return
	}
	need := len(b.buf) + n
	newCap := 2 * cap(b.buf)
	if newCap < need {
		newCap = need
	}
	if newCap < 64 {
		newCap = 64
	}
	newBuf := b.alloc.Alloc(newCap)
	newBuf = newBuf[:len(b.buf)]
	copy(newBuf, b.buf)
	b.buf = newBuf
}

// Write appends p to the buffer, growing as needed. It always returns
// len(p), nil, satisfying io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.grow(len(p))
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteByte appends a single byte.
func (b *Buffer) WriteByte(c byte) error {
	b.grow(1)
	b.buf = append(b.buf, c)
	return nil
}

// Detach transfers ownership of the backing array to the caller and
// resets the Buffer to empty. The returned slice must not be mutated
// through b afterward — there is none left to mutate.
func (b *Buffer) Detach() []byte {
	out := b.buf
	b.buf = nil
	return out
}

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() {
	b.buf = b.buf[:0]
}
