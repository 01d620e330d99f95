package websocket_test

import (
	"bytes"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	. "github.com/sabouaram/coco/websocket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubReader struct{ src *bytes.Reader }

func (s *stubReader) Read(buf []byte, n int) (int, errs.Error) {
	if n > len(buf) {
		n = len(buf)
	}
	nr, err := s.src.Read(buf[:n])
	if nr == 0 && err != nil {
		return 0, errs.CodeSocketRead.Error(err)
	}
	return nr, nil
}

var _ = Describe("frame encode/decode", func() {
	It("round-trips a small masked text frame", func() {
		wire := EncodeFrame(OpcodeText, []byte("hello ws"), true, true)

		r := &stubReader{src: bytes.NewReader(wire)}
		buf := fastbuf.New()

		f, err := ReadFrame(r, buf)
		Expect(err).To(BeNil())
		Expect(f.Fin).To(BeTrue())
		Expect(f.Opcode).To(Equal(OpcodeText))
		Expect(f.Masked).To(BeTrue())
		Expect(string(f.Payload)).To(Equal("hello ws"))
	})

	It("round-trips an unmasked binary frame with an extended 16-bit length", func() {
		payload := bytes.Repeat([]byte{0x42}, 300)
		wire := EncodeFrame(OpcodeBinary, payload, true, false)

		r := &stubReader{src: bytes.NewReader(wire)}
		buf := fastbuf.New()

		f, err := ReadFrame(r, buf)
		Expect(err).To(BeNil())
		Expect(f.Masked).To(BeFalse())
		Expect(f.Payload).To(Equal(payload))
	})
})

type fakeSender struct {
	sent []Opcode
}

func (s *fakeSender) SendFrame(opcode Opcode, payload []byte) errs.Error {
	s.sent = append(s.sent, opcode)
	return nil
}

var _ = Describe("Accumulator", func() {
	It("echoes CLOSE and answers PING with PONG", func() {
		var a Accumulator
		s := &fakeSender{}

		Expect(a.Handle(&Frame{Opcode: OpcodeClose, Fin: true}, s, func(Opcode, []byte) {})).To(BeNil())
		Expect(a.Handle(&Frame{Opcode: OpcodePing, Fin: true, Payload: []byte("p")}, s, func(Opcode, []byte) {})).To(BeNil())

		Expect(s.sent).To(Equal([]Opcode{OpcodeClose, OpcodePong}))
	})

	It("reassembles a fragmented TEXT message across CONTINUATION frames", func() {
		var a Accumulator
		s := &fakeSender{}

		var delivered []byte
		var deliveredOp Opcode
		deliver := func(op Opcode, d []byte) {
			deliveredOp = op
			delivered = append([]byte(nil), d...)
		}

		Expect(a.Handle(&Frame{Opcode: OpcodeText, Fin: false, Payload: []byte("hel")}, s, deliver)).To(BeNil())
		Expect(delivered).To(BeNil())
		Expect(a.Handle(&Frame{Opcode: OpcodeContinuation, Fin: false, Payload: []byte("lo ")}, s, deliver)).To(BeNil())
		Expect(a.Handle(&Frame{Opcode: OpcodeContinuation, Fin: true, Payload: []byte("ws")}, s, deliver)).To(BeNil())

		Expect(deliveredOp).To(Equal(OpcodeText))
		Expect(string(delivered)).To(Equal("hello ws"))
	})

	It("delivers a single unfragmented frame immediately", func() {
		var a Accumulator
		s := &fakeSender{}

		var delivered []byte
		deliver := func(_ Opcode, d []byte) { delivered = d }

		Expect(a.Handle(&Frame{Opcode: OpcodeBinary, Fin: true, Payload: []byte("x")}, s, deliver)).To(BeNil())
		Expect(string(delivered)).To(Equal("x"))
	})
})
