package fastbuf_test

import (
	"bytes"

	. "github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/errs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type stubReader struct {
	src *bytes.Reader
}

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

var _ = Describe("Buffer", func() {
	It("grows from a reader and exposes the requested bytes", func() {
		b := New()
		r := &stubReader{src: bytes.NewReader([]byte("hello world"))}

		Expect(b.Grow(r, 5)).To(BeNil())
		Expect(b.Size()).To(BeNumerically(">=", 5))
		Expect(string(b.ReadSlice(5))).To(Equal("hello"))
	})

	It("Read1Byte consumes exactly one byte and advances the cursor", func() {
		b := New()
		r := &stubReader{src: bytes.NewReader([]byte("AB"))}
		Expect(b.Grow(r, 2)).To(BeNil())

		Expect(b.Read1Byte()).To(Equal(byte('A')))
		Expect(b.Read1Byte()).To(Equal(byte('B')))
	})

	It("Skip advances without consuming via ReadSlice semantics", func() {
		b := New()
		r := &stubReader{src: bytes.NewReader([]byte("abcdef"))}
		Expect(b.Grow(r, 6)).To(BeNil())

		b.Skip(2)
		Expect(string(b.ReadSlice(4))).To(Equal("cdef"))
	})

	It("serves a later Grow once earlier bytes were consumed", func() {
		b := New()
		r := &stubReader{src: bytes.NewReader(bytes.Repeat([]byte("x"), 300*1024))}

		Expect(b.Grow(r, 1024)).To(BeNil())
		_ = b.ReadSlice(1024)

		Expect(b.Grow(r, 200*1024)).To(BeNil())
		Expect(b.Size()).To(BeNumerically(">=", 200*1024))
	})

	It("fails reader_buffer_overflow past the hard cap", func() {
		b := New()
		r := &stubReader{src: bytes.NewReader(bytes.Repeat([]byte("y"), HardCap()+1))}

		err := b.Grow(r, HardCap()+1)
		Expect(err).NotTo(BeNil())
		Expect(err.Is(errs.CodeReaderBufferOverflow)).To(BeTrue())
	})

	It("SetSizes re-arms the growth step and ceiling", func() {
		soft, hard := SoftSize(), HardCap()
		defer SetSizes(soft, hard)

		SetSizes(4096, 64*1024)
		Expect(SoftSize()).To(Equal(4096))
		Expect(HardCap()).To(Equal(64 * 1024))

		SetSizes(0, 0)
		Expect(SoftSize()).To(Equal(4096))
		Expect(HardCap()).To(Equal(64 * 1024))
	})
})
