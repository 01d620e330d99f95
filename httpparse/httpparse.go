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

// Package httpparse is the incremental HTTP/1.1 header parser: it
// owns nothing but the parse step itself, feeding a fastbuf.Buffer
// until a full header block is available, parsing exactly that block,
// and leaving everything after it untouched in the buffer.
package httpparse

import (
	"bufio"
	"bytes"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
)

// State is the parser's progress through one message.
type State int

const (
	StateInit State = iota
	StateHeaderComplete
)

// Header is one ordered (name, value) pair as it appeared on the
// wire. Headers is kept as a slice, not a map, so a caller that needs
// to re-serialise preserves wire order.
type Header struct {
	Name  string
	Value string
}

// Message is the header-block half of an HTTP/1.1 request or
// response; body handling belongs to httpmsg.
type Message struct {
	// Request line
	Method string
	URL    string
	Proto  string

	// Status line
	StatusCode int
	Reason     string

	Headers []Header
	State   State
}

func (m *Message) reset() {
	m.Method = ""
	m.URL = ""
	m.Proto = ""
	m.StatusCode = 0
	m.Reason = ""
	m.Headers = m.Headers[:0]
	m.State = StateInit
}

// Get returns the first header value matching name, case-insensitively,
// or "" if absent.
func (m *Message) Get(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// ShouldKeepAlive reports the HTTP/1.1 keep-alive default unless
// overridden by an explicit Connection header.
func (m *Message) ShouldKeepAlive() bool {
	conn := strings.ToLower(m.Get("Connection"))
	if conn == "close" {
		return false
	}
	if m.Proto == "HTTP/1.0" {
		return conn == "keep-alive"
	}
	return true
}

// ParseMessage resets per-message state, then loops growing buf until
// the CRLFCRLF that ends the header block is present, parses exactly
// that slice, and skips buf past it so the remainder (body, or the
// next message on a keep-alive stream) is left untouched for the
// caller.
//
// The manual scan for CRLFCRLF exists because neither bufio nor
// textproto expose "how many bytes did the header block consume" the
// way this buffer-sharing design needs; once the boundary is known,
// textproto.Reader handles line folding and name canonicalisation,
// read field by field so Headers keeps the wire order.
func ParseMessage(r fastbuf.Reader, buf *fastbuf.Buffer, msg *Message, isRequest bool) errs.Error {
	msg.reset()

	for {
		b := buf.Bytes()
		idx := bytes.Index(b, []byte("\r\n\r\n"))
		if idx >= 0 {
			consumed := idx + 4
			if err := parseHeaderBlock(b[:consumed], msg, isRequest); err != nil {
				return err
			}
			buf.Skip(consumed)
			msg.State = StateHeaderComplete
			return nil
		}

		if err := buf.Grow(r, buf.Size()+1); err != nil {
			return err
		}
	}
}

func parseHeaderBlock(block []byte, msg *Message, isRequest bool) errs.Error {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(block)))

	line, err := tp.ReadLine()
	if err != nil {
		return errs.CodeHTTPParseURI.Error(err)
	}

	if isRequest {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return errs.CodeHTTPParseURI.Error()
		}
		msg.Method = parts[0]
		msg.URL = parts[1]
		msg.Proto = parts[2]
	} else {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) < 2 {
			return errs.CodeHTTPParseURI.Error()
		}
		msg.Proto = parts[0]
		code, cerr := strconv.Atoi(parts[1])
		if cerr != nil {
			return errs.CodeHTTPParseURI.Error(cerr)
		}
		msg.StatusCode = code
		if len(parts) == 3 {
			msg.Reason = parts[2]
		}
	}

	// Read header fields line by line rather than through
	// textproto.ReadMIMEHeader: its map loses the wire order Headers
	// preserves.
	for {
		field, ferr := tp.ReadContinuedLine()
		if ferr != nil || field == "" {
			break
		}
		idx := strings.IndexByte(field, ':')
		if idx <= 0 {
			return errs.CodeHTTPParseURI.Error()
		}
		msg.Headers = append(msg.Headers, Header{
			Name:  textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(field[:idx])),
			Value: strings.TrimSpace(field[idx+1:]),
		})
	}

	return nil
}
