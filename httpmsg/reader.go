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

package httpmsg

import (
	"strconv"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
)

// HTTPReadCacheBytes is the per-iteration read size ReadAll drains a
// body in.
const HTTPReadCacheBytes = 4096

// BodyReader decodes a request or response body. It shares the
// Message's fast buffer, so bytes already pulled in while scanning
// for the header's CRLFCRLF are consumed as body instead of re-read
// from the wire.
type BodyReader struct {
	r    fastbuf.Reader
	buf  *fastbuf.Buffer
	mode bodyMode

	contentLength int64
	nbTotalRead   int64

	nbLeftChunk int64
	isEOF       bool
}

type bodyMode int

const (
	modeContentLength bodyMode = iota
	modeChunked
	modeInfinite
)

func newBodyReader(r fastbuf.Reader, buf *fastbuf.Buffer, mode bodyMode, contentLength int64) *BodyReader {
	b := &BodyReader{r: r, buf: buf, mode: mode, contentLength: contentLength}
	if mode == modeContentLength && contentLength <= 0 {
		b.isEOF = true
	}
	return b
}

// IsEOF reports whether the body has been fully consumed.
func (b *BodyReader) IsEOF() bool { return b.isEOF }

// Read dispatches to the body mode selected at construction.
func (b *BodyReader) Read(out []byte) (int, errs.Error) {
	if b.isEOF {
		return 0, errs.CodeHTTPResponseEOF.Error()
	}

	switch b.mode {
	case modeChunked:
		return b.readChunked(out)
	default:
		return b.readSpecified(out)
	}
}

// readChunked locates the CRLF-terminated hex length header, reads up
// to that many payload bytes, then always consumes the trailing CRLF
// once the chunk is drained.
func (b *BodyReader) readChunked(out []byte) (int, errs.Error) {
	if b.nbLeftChunk <= 0 {
		for {
			data := b.buf.Bytes()
			idx := indexCRLF(data)
			if idx >= 0 {
				if idx == 0 {
					return 0, errs.CodeHTTPInvalidChunkHeader.Error()
				}
				header := b.buf.ReadSlice(idx + 2)
				n, perr := strconv.ParseInt(string(header[:idx]), 16, 64)
				if perr != nil || n < 0 {
					return 0, errs.CodeHTTPInvalidChunkHeader.Error(perr)
				}
				if n == 0 {
					if err := b.buf.Grow(b.r, 2); err != nil {
						return 0, err
					}
					b.buf.Skip(2)
					b.isEOF = true
					return 0, nil
				}
				b.nbLeftChunk = n
				break
			}
			if err := b.buf.Grow(b.r, b.buf.Size()+1); err != nil {
				return 0, err
			}
		}
	}

	want := len(out)
	if int64(want) > b.nbLeftChunk {
		want = int(b.nbLeftChunk)
	}

	n, err := b.readRaw(out[:want])
	if err != nil {
		return n, err
	}
	b.nbLeftChunk -= int64(n)

	if b.nbLeftChunk == 0 {
		if err := b.buf.Grow(b.r, 2); err != nil {
			return n, err
		}
		b.buf.Skip(2)
	}

	return n, nil
}

// readSpecified serves the content-length and infinite-chunked modes.
// For content-length, remaining is capped before reading a single
// byte: once the total read has reached the declared length there is
// nothing left to read and the call must not block on the socket
// waiting for it. Infinite-chunked has no cap and always reads through
// to readRaw.
func (b *BodyReader) readSpecified(out []byte) (int, errs.Error) {
	if b.mode == modeContentLength {
		remaining := b.contentLength - b.nbTotalRead
		if remaining <= 0 {
			b.isEOF = true
			return 0, nil
		}
		if int64(len(out)) > remaining {
			out = out[:remaining]
		}
	}

	n, err := b.readRaw(out)
	if err != nil {
		return n, err
	}

	b.nbTotalRead += int64(n)
	if b.mode == modeContentLength && b.nbTotalRead >= b.contentLength {
		b.isEOF = true
	}
	return n, nil
}

func (b *BodyReader) readRaw(out []byte) (int, errs.Error) {
	if b.buf.Size() == 0 {
		if err := b.buf.Grow(b.r, 1); err != nil {
			return 0, err
		}
	}

	n := b.buf.Size()
	if n > len(out) {
		n = len(out)
	}

	copy(out, b.buf.ReadSlice(n))
	return n, nil
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}
