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

package websocket

import (
	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
)

// Client is a connected, upgraded WebSocket session: it knows how to
// send masked frames and decode the next one from its shared fast
// buffer.
type Client struct {
	w   Writer
	r   fastbuf.Reader
	buf *fastbuf.Buffer
	acc Accumulator
}

// NewClient wraps an already-upgraded stream. Dial the transport and
// call Upgrade first.
func NewClient(w Writer, r fastbuf.Reader, buf *fastbuf.Buffer) *Client {
	return &Client{w: w, r: r, buf: buf}
}

// SendFrame implements Sender for the accumulator's CLOSE/PING
// replies, and is exported so callers can also reply out-of-band.
func (c *Client) SendFrame(opcode Opcode, payload []byte) errs.Error {
	frame := EncodeFrame(opcode, payload, true, true)
	_, err := c.w.Write(frame, len(frame))
	return err
}

// Send emits buf[:n] as a single final, masked frame.
func (c *Client) Send(buf []byte, n int, opcode Opcode) errs.Error {
	return c.SendFrame(opcode, buf[:n])
}

// ReadMessage decodes frames from the stream, replying to control
// frames and reassembling fragments, until one complete message is
// ready to deliver; it then returns that message's opcode and data.
func (c *Client) ReadMessage() (Opcode, []byte, errs.Error) {
	for {
		f, err := ReadFrame(c.r, c.buf)
		if err != nil {
			return 0, nil, err
		}

		var delivered bool
		var opcode Opcode
		var data []byte

		herr := c.acc.Handle(f, c, func(op Opcode, d []byte) {
			delivered = true
			opcode = op
			data = append([]byte(nil), d...)
		})
		if herr != nil {
			return 0, nil, herr
		}

		if delivered {
			return opcode, data, nil
		}
	}
}
