/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package fastbuf is the contiguous read-ahead buffer the HTTP and
// WebSocket parsers grow from a socket: compact live bytes forward,
// then reallocate in SoftSize-multiple steps, up to a hard ceiling
// past which growth is a fatal error.
package fastbuf

import (
	"sync/atomic"

	"github.com/sabouaram/coco/errs"
)

const (
	defaultSoftSize = 128 * 1024
	defaultHardCap  = 10 * 1024 * 1024
)

var (
	softSize atomic.Int64
	hardCap  atomic.Int64
)

func init() {
	softSize.Store(defaultSoftSize)
	hardCap.Store(defaultHardCap)
}

// SoftSize returns the growth increment buffers reallocate in.
func SoftSize() int { return int(softSize.Load()) }

// HardCap returns the ceiling past which Grow fails
// reader_buffer_overflow.
func HardCap() int { return int(hardCap.Load()) }

// SetSizes re-arms the growth increment and hard ceiling for buffers
// reallocating from now on. A non-positive value leaves the current
// setting untouched.
func SetSizes(soft, hard int) {
	if soft > 0 {
		softSize.Store(int64(soft))
	}
	if hard > 0 {
		hardCap.Store(int64(hard))
	}
}

// Reader is anything a Buffer can Grow from: the socket layer's Read.
type Reader interface {
	Read(buf []byte, n int) (nread int, err errs.Error)
}

// Buffer is a single contiguous byte region with begin/read/write/end
// cursors, satisfying begin <= read <= write <= end at all times. A
// slice returned by ReadSlice is valid only until the next Grow.
type Buffer struct {
	buf   []byte
	read  int // next byte to be consumed
	write int // end of bytes already filled
}

// New returns an empty Buffer with no backing storage allocated yet;
// the first Grow call sizes it.
func New() *Buffer {
	return &Buffer{}
}

// Size returns the number of unconsumed bytes currently buffered.
func (b *Buffer) Size() int {
	return b.write - b.read
}

// Bytes returns the unconsumed bytes without consuming them. Use
// ReadSlice to both view and consume; Bytes exists for inexpensive
// peeking such as protocol sniffing.
func (b *Buffer) Bytes() []byte {
	return b.buf[b.read:b.write]
}

// Read1Byte consumes and returns the next byte. The caller must have
// already Grow'n the buffer to at least 1 byte.
func (b *Buffer) Read1Byte() byte {
	c := b.buf[b.read]
	b.read++
	return c
}

// ReadSlice consumes and returns the next n bytes as a slice into the
// internal buffer. The caller must have already Grow'n to at least n.
func (b *Buffer) ReadSlice(n int) []byte {
	s := b.buf[b.read : b.read+n]
	b.read += n
	return s
}

// Skip advances (or, with a negative n, rewinds) the read cursor by n
// bytes without returning them the way ReadSlice does.
func (b *Buffer) Skip(n int) {
	b.read += n
}

// Update overwrites the first requiredSize unconsumed bytes with data,
// used by protocol engines that rewrite a just-parsed header in place.
func (b *Buffer) Update(data []byte, requiredSize int) int {
	n := copy(b.buf[b.read:b.read+requiredSize], data)
	return n
}

// Grow ensures at least requiredSize unconsumed bytes are available,
// reading from reader as many times as necessary. It compacts live
// bytes to the front of the backing array first; only if that still
// leaves too little room does it reallocate, in SoftSize-multiple
// steps, capped at HardCap.
func (b *Buffer) Grow(reader Reader, requiredSize int) errs.Error {
	existing := b.write - b.read
	free := len(b.buf) - b.write

	if free < requiredSize-existing {
		if existing == 0 {
			b.read, b.write = 0, 0
		} else if existing < len(b.buf) && b.read > 0 {
			copy(b.buf, b.buf[b.read:b.write])
			b.read = 0
			b.write = existing
		}

		free = len(b.buf) - b.write
		if free < requiredSize-existing {
			if err := b.realloc(requiredSize); err != nil {
				return err
			}
			free = len(b.buf) - b.write
		}
	}

	for b.write-b.read < requiredSize {
		n, err := reader.Read(b.buf[b.write:], free)
		if err != nil {
			return err
		}
		b.write += n
		free -= n
	}

	return nil
}

func (b *Buffer) realloc(requiredSize int) errs.Error {
	alreadyRead := b.read
	existing := b.write - b.read
	step := SoftSize()

	target := alreadyRead + requiredSize
	steps := target/step + 1
	newSize := steps * step
	if newSize < len(b.buf) {
		newSize = len(b.buf)
	}
	newSize += 2 * step

	if newSize > HardCap() {
		return errs.CodeReaderBufferOverflow.Error()
	}

	grown := make([]byte, newSize)
	copy(grown, b.buf[alreadyRead:b.write])
	b.buf = grown
	b.read = 0
	b.write = existing

	return nil
}
