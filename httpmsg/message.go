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

// Package httpmsg is the parsed HTTP message: it drives
// httpparse.ParseMessage, derives the chunked/keep-alive/JSONP flags,
// and hands the caller a BodyReader bound to the same fast buffer the
// header was parsed out of.
package httpmsg

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/httpparse"
)

// Message is a fully parsed HTTP/1.1 request or response, plus a body
// reader bound to the stream it was parsed from.
type Message struct {
	raw *httpparse.Message

	URI         *url.URL
	Query       map[string]string
	Extension   string
	JSONP       bool
	JSONPMethod string

	Chunked   bool
	KeepAlive bool

	Body *BodyReader
}

// Method returns the request method, or the JSONP override (mapped to
// GET/PUT/POST/DELETE) when one was supplied via a ?method= query
// parameter.
func (m *Message) Method() string {
	if m.JSONP && m.JSONPMethod != "" {
		switch strings.ToUpper(m.JSONPMethod) {
		case "GET", "PUT", "POST", "DELETE":
			return strings.ToUpper(m.JSONPMethod)
		}
	}
	return m.raw.Method
}

// Path returns the request's URI path, the value httpmux matches
// patterns against.
func (m *Message) Path() string { return m.URI.Path }

func (m *Message) StatusCode() int   { return m.raw.StatusCode }
func (m *Message) Reason() string    { return m.raw.Reason }
func (m *Message) Proto() string     { return m.raw.Proto }
func (m *Message) Get(name string) string { return m.raw.Get(name) }
func (m *Message) Headers() []httpparse.Header { return m.raw.Headers }

// Parse runs httpparse.ParseMessage over the stream, derives the
// chunked/keep-alive flags, constructs and parses the URI, splits the
// query, detects the file extension, and detects JSONP.
func Parse(r fastbuf.Reader, buf *fastbuf.Buffer, isRequest bool) (*Message, errs.Error) {
	raw := &httpparse.Message{}
	if err := httpparse.ParseMessage(r, buf, raw, isRequest); err != nil {
		return nil, err
	}

	m := &Message{raw: raw, Query: map[string]string{}}

	m.Chunked = strings.EqualFold(raw.Get("Transfer-Encoding"), "chunked")
	m.KeepAlive = raw.ShouldKeepAlive()

	host := raw.Get("Host")
	if host == "" {
		host = firstNonLoopbackIPv4()
	}

	full := "http://" + host + raw.URL
	uri, uerr := url.Parse(full)
	if uerr != nil {
		return nil, errs.CodeHTTPParseURI.Error(uerr)
	}
	m.URI = uri

	for _, pair := range strings.Split(uri.RawQuery, "&") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			m.Query[kv[0]] = kv[1]
		} else {
			m.Query[kv[0]] = ""
		}
	}

	if dot := strings.LastIndexByte(uri.Path, '.'); dot >= 0 {
		m.Extension = uri.Path[dot:]
	}

	if cb, ok := m.Query["callback"]; ok && cb != "" {
		m.JSONP = true
		if method, ok := m.Query["method"]; ok {
			m.JSONPMethod = method
		}
	}

	var mode bodyMode
	var contentLength int64
	if m.Chunked {
		mode = modeChunked
	} else if cl := raw.Get("Content-Length"); cl != "" {
		n, perr := strconv.ParseInt(cl, 10, 64)
		if perr != nil {
			return nil, errs.CodeHTTPContentLength.Error(perr)
		}
		contentLength = n
		mode = modeContentLength
	} else {
		// Neither chunked nor Content-Length: infinite-chunked is
		// opt-in only, so the body is empty rather than
		// read-until-close.
		mode = modeContentLength
		contentLength = 0
	}

	m.Body = newBodyReader(r, buf, mode, contentLength)

	return m, nil
}

// SetInfiniteChunked switches the body to read-until-close mode. It is
// opt-in only and cannot coexist with chunked framing or an explicit
// Content-Length.
func (m *Message) SetInfiniteChunked() errs.Error {
	if m.Chunked || m.raw.Get("Content-Length") != "" {
		return errs.CodeHTTPContentLength.Error()
	}
	m.Body = newBodyReader(m.Body.r, m.Body.buf, modeInfinite, 0)
	return nil
}

// ReadAll drains a body by reading HTTPReadCacheBytes at a time until
// the body reader reports EOF.
func ReadAll(b *BodyReader) ([]byte, errs.Error) {
	out := make([]byte, 0, HTTPReadCacheBytes)
	chunk := make([]byte, HTTPReadCacheBytes)

	for !b.IsEOF() {
		n, err := b.Read(chunk)
		if err != nil {
			return out, err
		}
		out = append(out, chunk[:n]...)
		if n == 0 {
			break
		}
	}
	return out, nil
}

func firstNonLoopbackIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "localhost"
}
