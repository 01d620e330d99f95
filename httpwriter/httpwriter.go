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

// Package httpwriter is the response writer state machine:
// Init -> HeaderDeclared -> HeaderSent -> FinalRequest, with chunked
// framing when no Content-Length was declared.
package httpwriter

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/httpparse"
)

// Writer is the minimal stream capability a ResponseWriter needs,
// satisfied by socket.Socket and socket.Socket-wrapping transports
// (e.g. transport/tls.Conn) without importing either package.
type Writer interface {
	Write(buf []byte, n int) (int, errs.Error)
	WriteLargeIovs(iov [][]byte) (int, errs.Error)
}

type state int

const (
	stateInit state = iota
	stateHeaderDeclared
	stateHeaderSent
	stateFinal
)

// ResponseWriter serialises a status line, headers and body onto w,
// switching to chunked framing whenever no Content-Length was set
// before the header block was sent.
type ResponseWriter struct {
	w             Writer
	state         state
	status        int
	headers       []httpparse.Header
	contentLength int64 // -1 means "not declared" -> chunked
	written       int64
}

func New(w Writer) *ResponseWriter {
	return &ResponseWriter{w: w, state: stateInit, contentLength: -1}
}

// SetHeader records a header to be emitted with the status line. Must
// be called before WriteHeader. A name or value that isn't valid per
// RFC 7230 is dropped rather than emitted malformed onto the wire.
func (rw *ResponseWriter) SetHeader(name, value string) {
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return
	}
	if strings.EqualFold(name, "Content-Length") {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			rw.contentLength = n
		}
	}
	rw.headers = append(rw.headers, httpparse.Header{Name: name, Value: value})
}

// Status returns the status code declared so far (0 before the first
// WriteHeader/Write/FinalRequest call).
func (rw *ResponseWriter) Status() int { return rw.status }

func (rw *ResponseWriter) header(name string) string {
	for _, h := range rw.headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// WriteHeader captures the status code, transitioning Init ->
// HeaderDeclared. Calling it more than once is a no-op after the
// first call.
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.state != stateInit {
		return
	}
	rw.status = code
	rw.state = stateHeaderDeclared
}

// Write emits n bytes of body, implicitly calling WriteHeader(200)
// first if no status was declared, and sending the header block on
// the first call.
func (rw *ResponseWriter) Write(buf []byte, n int) (int, errs.Error) {
	if rw.state == stateInit {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.state == stateHeaderDeclared {
		if err := rw.sendHeader(); err != nil {
			return 0, err
		}
	}

	if rw.contentLength >= 0 {
		if rw.written+int64(n) > rw.contentLength {
			return 0, errs.CodeHTTPContentLength.Error()
		}
		nw, err := rw.w.Write(buf, n)
		rw.written += int64(nw)
		return nw, err
	}

	// Chunked: hex(n) CRLF data CRLF as a single Writev of 4 iovecs.
	size := []byte(strconv.FormatInt(int64(n), 16))
	iov := [][]byte{size, []byte("\r\n"), buf[:n], []byte("\r\n")}
	nw, err := rw.w.WriteLargeIovs(iov)
	rw.written += int64(n)
	_ = nw
	return n, err
}

// Writev emits k iovecs as a single unit. With a fixed Content-Length,
// or before the header is sent, it falls back to per-iovec Write and
// sums. Once chunked framing is active it builds one chunk spanning
// all k payloads.
func (rw *ResponseWriter) Writev(iov [][]byte) (int, errs.Error) {
	if rw.state == stateInit {
		rw.WriteHeader(http.StatusOK)
	}

	if rw.contentLength >= 0 || rw.state == stateHeaderDeclared {
		total := 0
		for _, b := range iov {
			n, err := rw.Write(b, len(b))
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}

	total := 0
	for _, b := range iov {
		total += len(b)
	}

	size := []byte(strconv.FormatInt(int64(total), 16))
	full := make([][]byte, 0, len(iov)+3)
	full = append(full, size, []byte("\r\n"))
	full = append(full, iov...)
	full = append(full, []byte("\r\n"))

	_, err := rw.w.WriteLargeIovs(full)
	rw.written += int64(total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// FinalRequest closes out the response: declares 200 if nothing was
// ever written, emits the chunked terminator if chunked, and is a
// no-op flush otherwise (Write never buffers in this implementation).
func (rw *ResponseWriter) FinalRequest() errs.Error {
	if rw.state == stateInit {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.state == stateHeaderDeclared {
		if err := rw.sendHeader(); err != nil {
			return err
		}
	}
	if rw.state == stateFinal {
		return nil
	}

	if rw.contentLength < 0 {
		if _, err := rw.w.Write([]byte("0\r\n\r\n"), 5); err != nil {
			return err
		}
	}

	rw.state = stateFinal
	return nil
}

// Error writes a plain-text error response: Content-Type, exact
// Content-Length, the status line, and the caller's text (or the
// standard status phrase when text is empty).
func Error(rw *ResponseWriter, code int, text string) errs.Error {
	if text == "" {
		text = http.StatusText(code)
	}
	rw.SetHeader("Content-Type", "text/plain; charset=utf-8")
	rw.SetHeader("Content-Length", strconv.Itoa(len(text)))
	rw.WriteHeader(code)
	if _, err := rw.Write([]byte(text), len(text)); err != nil {
		return err
	}
	return rw.FinalRequest()
}

// StatusPermitsBody reports whether a response with this status may
// carry a body: every status outside 1xx, excluding 204 and 304.
func StatusPermitsBody(code int) bool {
	if code >= 100 && code < 200 {
		return false
	}
	return code != 204 && code != 304
}

// sendHeader serialises the status line and headers, applying the
// implicit Transfer-Encoding/Content-Type/Connection headers, then
// transitions to HeaderSent.
func (rw *ResponseWriter) sendHeader() errs.Error {
	if rw.contentLength < 0 {
		rw.SetHeader("Transfer-Encoding", "chunked")
	}
	if rw.header("Content-Type") == "" && StatusPermitsBody(rw.status) {
		rw.SetHeader("Content-Type", "application/octet-stream")
	}
	rw.SetHeader("Connection", "Keep-Alive")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("HTTP/1.1 %d %s\r\n", rw.status, http.StatusText(rw.status)))
	for _, h := range rw.headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")

	line := []byte(sb.String())
	if _, err := rw.w.Write(line, len(line)); err != nil {
		return err
	}

	rw.state = stateHeaderSent
	return nil
}
