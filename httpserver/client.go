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

//go:build linux

package httpserver

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http/httpguts"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/httpmsg"
	"github.com/sabouaram/coco/httpparse"
	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/transport/tcp"
	"github.com/sabouaram/coco/transport/tls"
)

// clientTimeout is the connect/request timeout Initialize applies
// when the caller passes zero.
var clientTimeout atomic.Int64

func init() {
	clientTimeout.Store(int64(time.Second))
}

// SetClientTimeout re-arms the default timeout subsequent Initialize
// calls fall back to. A non-positive value leaves the current setting
// untouched.
func SetClientTimeout(d time.Duration) {
	if d > 0 {
		clientTimeout.Store(int64(d))
	}
}

// Client is a lazily-connected request sender reusing one TCP
// (optionally TLS) connection across requests for as long as the peer
// keeps it alive.
type Client struct {
	isHTTPS bool
	host    string
	port    int
	timeout time.Duration
	react   *reactor.Reactor

	conn   *tcp.Conn
	tls    *tls.Conn
	stream Stream
	buf    *fastbuf.Buffer

	method  string
	headers []httpparse.Header
}

// Initialize creates a client bound to host:port. When port is left
// at zero, the default is 80, or 443 with isHTTPS set; a zero timeout
// is replaced by the package's client timeout.
func Initialize(r *reactor.Reactor, isHTTPS bool, host string, port int, timeout time.Duration) *Client {
	if port == 0 {
		port = 80
		if isHTTPS {
			port = 443
		}
	}
	if timeout == 0 {
		timeout = time.Duration(clientTimeout.Load())
	}
	return &Client{
		isHTTPS: isHTTPS,
		host:    host,
		port:    port,
		timeout: timeout,
		react:   r,
	}
}

// Port returns the port Initialize resolved the client to, including
// the 80/443 default-port switch.
func (c *Client) Port() int { return c.port }

// SetMethod records the request method for the next SendRequest.
func (c *Client) SetMethod(method string) { c.method = method }

// SetHeader records a header to be sent with the next request,
// replacing any earlier value for the same name in place so the
// serialised order stays the call order. A name or value that isn't
// valid per RFC 7230 is dropped rather than serialised malformed onto
// the wire.
func (c *Client) SetHeader(name, value string) {
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return
	}
	for i, h := range c.headers {
		if strings.EqualFold(h.Name, name) {
			c.headers[i].Value = value
			return
		}
	}
	c.headers = append(c.headers, httpparse.Header{Name: name, Value: value})
}

// Headers returns the headers recorded for the next request, in the
// order they will be serialised.
func (c *Client) Headers() []httpparse.Header {
	out := make([]httpparse.Header, len(c.headers))
	copy(out, c.headers)
	return out
}

// connect dials (and, if https, TLS-handshakes) the client's target
// when it is not already connected.
func (c *Client) connect() errs.Error {
	if c.stream != nil {
		return nil
	}

	conn, err := tcp.Dial(c.react, protocol.NetworkTCP, c.host, c.port, c.timeout)
	if err != nil {
		return err
	}
	c.conn = conn

	if c.isHTTPS {
		tconn, terr := tls.Client(conn.Socket, c.host, false)
		if terr != nil {
			_ = conn.Close()
			return terr
		}
		c.tls = tconn
		c.stream = tconn
	} else {
		c.stream = conn
	}

	c.buf = fastbuf.New()
	return nil
}

// disconnect drops the connection so the next SendRequest reconnects.
func (c *Client) disconnect() {
	if c.stream != nil {
		_ = c.stream.Close()
	}
	c.conn = nil
	c.tls = nil
	c.stream = nil
	c.buf = nil
}

// SendRequest connects if needed, serialises the request line, headers
// and body, writes it, then parses the response. A write failure
// disconnects before returning.
func (c *Client) SendRequest(path string, body []byte) (*httpmsg.Message, errs.Error) {
	if err := c.connect(); err != nil {
		return nil, err
	}

	method := c.method
	if method == "" {
		method = "GET"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s HTTP/1.1\r\n", method, path))
	for _, h := range c.headers {
		sb.WriteString(h.Name)
		sb.WriteString(": ")
		sb.WriteString(h.Value)
		sb.WriteString("\r\n")
	}
	sb.WriteString("\r\n")
	sb.Write(body)

	req := []byte(sb.String())
	if _, err := c.stream.Write(req, len(req)); err != nil {
		c.disconnect()
		return nil, err
	}

	msg, perr := httpmsg.Parse(c.stream, c.buf, false)
	if perr != nil {
		c.disconnect()
		return nil, perr
	}
	return msg, nil
}

// defaultHeaders installs the headers common to Post and Get: Host,
// Request-Id, Connection, Content-Length, User-Agent, Content-Type.
func (c *Client) defaultHeaders(body []byte) {
	c.SetHeader("Host", c.host)
	c.SetHeader("Request-Id", uuid.NewString())
	c.SetHeader("Connection", "Keep-Alive")
	c.SetHeader("Content-Length", strconv.Itoa(len(body)))
	c.SetHeader("User-Agent", "coco")
	c.SetHeader("Content-Type", "application/json")
}

// Post sends body to path as a POST with the default headers.
func (c *Client) Post(path string, body []byte) (*httpmsg.Message, errs.Error) {
	c.SetMethod("POST")
	c.defaultHeaders(body)
	return c.SendRequest(path, body)
}

// Get sends a GET to path with the default headers and no body.
func (c *Client) Get(path string) (*httpmsg.Message, errs.Error) {
	c.SetMethod("GET")
	c.defaultHeaders(nil)
	return c.SendRequest(path, nil)
}
