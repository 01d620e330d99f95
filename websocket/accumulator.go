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

import "github.com/sabouaram/coco/errs"

// Sender is what the accumulator needs to answer CLOSE/PING frames
// without the caller threading the underlying connection through
// every dispatch call.
type Sender interface {
	SendFrame(opcode Opcode, payload []byte) errs.Error
}

// Accumulator reassembles fragmented TEXT/BINARY messages across
// successive ReadFrame results and answers control frames.
type Accumulator struct {
	frag       []byte
	fragOpcode Opcode
	fragActive bool
}

// Handle processes one decoded frame: CLOSE is echoed back, PING is
// answered with PONG carrying the same payload, a non-final
// TEXT/BINARY/CONTINUATION frame is stashed for the next call (dropped
// past MaxPacket total), and a final frame is delivered via deliver. A
// CONTINUATION frame with no message in progress, including the rest of
// a dropped message, is ignored.
func (a *Accumulator) Handle(f *Frame, s Sender, deliver func(opcode Opcode, data []byte)) errs.Error {
	switch f.Opcode {
	case OpcodeClose:
		return s.SendFrame(OpcodeClose, f.Payload)
	case OpcodePing:
		return s.SendFrame(OpcodePong, f.Payload)
	case OpcodePong:
		return nil
	}

	if !f.Fin {
		if f.Opcode != OpcodeContinuation {
			a.fragOpcode = f.Opcode
			a.fragActive = true
			a.frag = append(a.frag[:0], f.Payload...)
			return nil
		}
		if !a.fragActive {
			return nil
		}
		if len(a.frag)+len(f.Payload) > MaxPacket() {
			a.fragActive = false
			a.frag = nil
			return nil
		}
		a.frag = append(a.frag, f.Payload...)
		return nil
	}

	if f.Opcode == OpcodeContinuation {
		if !a.fragActive {
			return nil
		}
		a.frag = append(a.frag, f.Payload...)
		if len(a.frag) <= MaxPacket() {
			deliver(a.fragOpcode, a.frag)
		}
		a.fragActive = false
		a.frag = nil
		return nil
	}

	deliver(f.Opcode, f.Payload)
	return nil
}
