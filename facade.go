package mkvtag

import (
	"fmt"
	"io"
	"os"
)

// Context owns one open file and the parsed tag tree cached from it,
// mirroring the teacher's Demuxer — a thin wrapper delegating to the
// lower-level parser/planner — generalized from read-only demuxing to
// the read/write/cache/invalidate lifecycle this library needs.
type Context struct {
	file     *os.File
	src      *fileSource
	idx      *Index
	writable bool
	alloc    Allocator

	cached *Collection
}

// NewContext returns an unbound Context, for callers that want to reuse
// one handle across a sequence of files via (*Context).Open/OpenReadWrite
// and Close — the Go-native shape of the original library's single
// reusable handle.
func NewContext() *Context {
	return &Context{}
}

// Open is the package-level convenience that allocates a fresh Context
// already bound to path in read-only mode.
func Open(path string) (*Context, error) {
	c := NewContext()
	if err := c.Open(path); err != nil {
		return nil, err
	}
	return c, nil
}

// OpenReadWrite is the package-level convenience that allocates a fresh
// Context already bound to path in read-write mode.
func OpenReadWrite(path string) (*Context, error) {
	c := NewContext()
	if err := c.OpenReadWrite(path); err != nil {
		return nil, err
	}
	return c, nil
}

// Open binds c to path in read-only mode: ReadTags works, WriteTags and
// the convenience mutators all return ErrReadOnly. Returns ErrAlreadyOpen
// if c is already bound to a file (Close it first to reuse the handle).
func (c *Context) Open(path string) error {
	return c.bind(path, false)
}

// OpenReadWrite binds c to path in read-write mode. Returns
// ErrAlreadyOpen if c is already bound to a file.
func (c *Context) OpenReadWrite(path string) error {
	return c.bind(path, true)
}

func (c *Context) bind(path string, writable bool) error {
	if c.file != nil {
		return ErrAlreadyOpen
	}

	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return fmt.Errorf("open: %w", wrapErr(ErrIO, err))
	}

	src := newFileSource(f)
	idx, err := BuildIndex(src)
	if err != nil {
		f.Close()
		return fmt.Errorf("build index: %w", err)
	}

	c.file = f
	c.src = src
	c.idx = idx
	c.writable = writable
	c.cached = nil
	return nil
}

// WithAllocator injects an Allocator used for every Buffer this Context
// builds internally (the new Tags bytes on WriteTags, and any padding
// Void the write planner needs). Returns the same Context for chaining,
// e.g. mkvtag.NewContext().WithAllocator(a).OpenReadWrite(path).
func (c *Context) WithAllocator(a Allocator) *Context {
	c.alloc = a
	return c
}

// ReadTags parses and caches the file's tag tree on first call, and
// returns the cached tree on subsequent calls until the next successful
// WriteTags or Close.
func (c *Context) ReadTags() (*Collection, error) {
	if c.file == nil {
		return nil, ErrNotOpen
	}
	if c.cached != nil {
		return c.cached, nil
	}

	offset, ok := c.idx.KnownOffsets[idTags]
	if !ok {
		c.cached = &Collection{}
		return c.cached, nil
	}

	h, err := readHeaderAt(c.src, offset)
	if err != nil {
		return nil, fmt.Errorf("read Tags header: %w", err)
	}
	er := newElementReader(c.src)
	if _, err := er.Seek(h.dataOffset, io.SeekStart); err != nil {
		return nil, err
	}
	collection, err := ParseTags(er, h)
	if err != nil {
		return nil, fmt.Errorf("parse Tags: %w", err)
	}
	c.cached = collection
	return c.cached, nil
}

// WriteTags serializes c and drives the write planner to place it,
// invalidating the cached tree on success since on-disk offsets may
// have moved.
func (c *Context) WriteTags(collection *Collection) error {
	if c.file == nil {
		return ErrNotOpen
	}
	if !c.writable {
		return ErrReadOnly
	}

	buf := NewBuffer(c.alloc)
	if err := collection.Serialize(buf); err != nil {
		return fmt.Errorf("serialize Tags: %w", err)
	}

	if _, err := planAndWrite(c.src, c.idx, buf.Bytes(), c.alloc); err != nil {
		return err
	}

	c.cached = nil
	return nil
}

// GetTagString returns the first SimpleTag value matching name
// (ASCII case-insensitive, §4.9) among album-level (TargetType 50) Tags.
func (c *Context) GetTagString(name string) (string, error) {
	if c.file == nil {
		return "", ErrNotOpen
	}
	if _, ok := c.idx.KnownOffsets[idTags]; !ok {
		return "", ErrNoTags
	}
	collection, err := c.ReadTags()
	if err != nil {
		return "", err
	}
	for _, tag := range collection.Tags {
		if tag.TargetType != 50 {
			continue
		}
		for _, st := range tag.SimpleTags {
			if equalTagName(st.Name, name) && st.Value != nil {
				return *st.Value, nil
			}
		}
	}
	return "", ErrTagNotFound
}

// SetTagString is a read-modify-write convenience: it places name/value
// in the first album-level Tag encountered in document order, or
// creates one if none exists (Decision D1), overwriting any existing
// SimpleTag of the same name in that Tag, then calls WriteTags.
func (c *Context) SetTagString(name, value string) error {
	if c.file == nil {
		return ErrNotOpen
	}
	if !c.writable {
		return ErrReadOnly
	}
	collection, err := c.ReadTags()
	if err != nil {
		return err
	}

	var target *Tag
	for _, tag := range collection.Tags {
		if tag.TargetType == 50 {
			target = tag
			break
		}
	}
	if target == nil {
		target = newTag()
		collection.Tags = append(collection.Tags, target)
	}

	for _, st := range target.SimpleTags {
		if equalTagName(st.Name, name) {
			v := value
			st.Value = &v
			return c.WriteTags(collection)
		}
	}

	st := newSimpleTag()
	st.Name = name
	v := value
	st.Value = &v
	target.SimpleTags = append(target.SimpleTags, st)
	return c.WriteTags(collection)
}

// RemoveTag removes the first SimpleTag matching name (ASCII
// case-insensitive) among album-level (TargetType 50) Tags, then calls
// WriteTags. Returns ErrTagNotFound if no match exists.
func (c *Context) RemoveTag(name string) error {
	if c.file == nil {
		return ErrNotOpen
	}
	if !c.writable {
		return ErrReadOnly
	}
	collection, err := c.ReadTags()
	if err != nil {
		return err
	}

	for _, tag := range collection.Tags {
		if tag.TargetType != 50 {
			continue
		}
		for i, st := range tag.SimpleTags {
			if equalTagName(st.Name, name) {
				tag.SimpleTags = append(tag.SimpleTags[:i], tag.SimpleTags[i+1:]...)
				return c.WriteTags(collection)
			}
		}
	}
	return ErrTagNotFound
}

// Close closes the underlying file descriptor. Safe to call once; a
// second call returns ErrNotOpen.
func (c *Context) Close() error {
	if c.file == nil {
		return ErrNotOpen
	}
	err := c.file.Close()
	c.file = nil
	c.src = nil
	c.cached = nil
	if err != nil {
		return wrapErr(ErrIO, err)
	}
	return nil
}
