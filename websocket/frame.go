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

// Package websocket is an RFC 6455 client: an upgrade handshake plus
// frame encode/decode with fragmentation and control-frame handling.
package websocket

import (
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
)

// Opcode identifies a frame's payload kind, per RFC 6455 §11.8.
type Opcode byte

const (
	OpcodeContinuation Opcode = 0x0
	OpcodeText         Opcode = 0x1
	OpcodeBinary       Opcode = 0x2
	OpcodeClose        Opcode = 0x8
	OpcodePing         Opcode = 0x9
	OpcodePong         Opcode = 0xA
)

const defaultMaxPacket = 4 * 1024 * 1024

var maxPacket atomic.Int64

func init() {
	maxPacket.Store(defaultMaxPacket)
}

// MaxPacket returns the cap on a reassembled fragmented payload past
// which the accumulator drops the message.
func MaxPacket() int { return int(maxPacket.Load()) }

// SetMaxPacket re-arms the reassembly cap. A non-positive value leaves
// the current setting untouched.
func SetMaxPacket(n int) {
	if n > 0 {
		maxPacket.Store(int64(n))
	}
}

// Frame is one decoded RFC 6455 frame with the mask already applied
// to Payload, if it carried one.
type Frame struct {
	Fin     bool
	Opcode  Opcode
	Masked  bool
	Payload []byte
}

// ReadFrame decodes one frame from buf, growing it from r as needed.
// Growth happens at well-defined boundaries (the 2-byte base header,
// the extended length, the mask, the payload), so a short read simply
// resumes the next Grow call instead of needing a separate resumable
// cache the way a byte-at-a-time decoder would.
func ReadFrame(r fastbuf.Reader, buf *fastbuf.Buffer) (*Frame, errs.Error) {
	if err := buf.Grow(r, 2); err != nil {
		return nil, err
	}
	b0 := buf.Read1Byte()
	b1 := buf.Read1Byte()

	f := &Frame{
		Fin:    b0&0x80 != 0,
		Opcode: Opcode(b0 & 0x0f),
		Masked: b1&0x80 != 0,
	}

	lenByte := b1 & 0x7f
	var payloadLen uint64
	switch lenByte {
	case 126:
		if err := buf.Grow(r, 2); err != nil {
			return nil, err
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf.ReadSlice(2)))
	case 127:
		if err := buf.Grow(r, 8); err != nil {
			return nil, err
		}
		payloadLen = binary.BigEndian.Uint64(buf.ReadSlice(8))
	default:
		payloadLen = uint64(lenByte)
	}

	var mask [4]byte
	if f.Masked {
		if err := buf.Grow(r, 4); err != nil {
			return nil, err
		}
		copy(mask[:], buf.ReadSlice(4))
	}

	if payloadLen > 0 {
		if err := buf.Grow(r, int(payloadLen)); err != nil {
			return nil, err
		}
		raw := buf.ReadSlice(int(payloadLen))
		f.Payload = make([]byte, payloadLen)
		copy(f.Payload, raw)
		if f.Masked {
			for i := range f.Payload {
				f.Payload[i] ^= mask[i%4]
			}
		}
	}

	return f, nil
}

// EncodeFrame produces the wire bytes for one frame, drawing the mask
// from crypto/rand. Client-to-server frames are always masked.
func EncodeFrame(opcode Opcode, payload []byte, fin bool, masked bool) []byte {
	var header []byte

	b0 := byte(opcode)
	if fin {
		b0 |= 0x80
	}

	n := len(payload)
	switch {
	case n <= 125:
		header = []byte{b0, byte(n)}
	case n <= 0xffff:
		header = make([]byte, 4)
		header[0] = b0
		header[1] = 126
		binary.BigEndian.PutUint16(header[2:], uint16(n))
	default:
		header = make([]byte, 10)
		header[0] = b0
		header[1] = 127
		binary.BigEndian.PutUint64(header[2:], uint64(n))
	}

	if !masked {
		out := make([]byte, len(header)+n)
		copy(out, header)
		copy(out[len(header):], payload)
		return out
	}

	header[1] |= 0x80
	var mask [4]byte
	_, _ = rand.Read(mask[:])

	out := make([]byte, len(header)+4+n)
	copy(out, header)
	copy(out[len(header):], mask[:])
	body := out[len(header)+4:]
	copy(body, payload)
	for i := range body {
		body[i] ^= mask[i%4]
	}
	return out
}
