package httpwriter_test

import (
	"bytes"

	"github.com/sabouaram/coco/errs"
	. "github.com/sabouaram/coco/httpwriter"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type bufWriter struct{ buf bytes.Buffer }

func (w *bufWriter) Write(buf []byte, n int) (int, errs.Error) {
	nw, _ := w.buf.Write(buf[:n])
	return nw, nil
}

func (w *bufWriter) WriteLargeIovs(iov [][]byte) (int, errs.Error) {
	total := 0
	for _, b := range iov {
		n, _ := w.buf.Write(b)
		total += n
	}
	return total, nil
}

var _ = Describe("ResponseWriter", func() {
	It("round-trips a fixed content-length body", func() {
		w := &bufWriter{}
		rw := New(w)
		rw.SetHeader("Content-Length", "5")
		rw.WriteHeader(200)

		n, err := rw.Write([]byte("hello"), 5)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(5))
		Expect(rw.FinalRequest()).To(BeNil())

		Expect(w.buf.String()).To(ContainSubstring("HTTP/1.1 200 OK\r\n"))
		Expect(w.buf.String()).To(ContainSubstring("Content-Length: 5"))
		Expect(w.buf.String()).To(HaveSuffix("hello"))
	})

	It("frames an undeclared-length body as chunked and terminates it", func() {
		w := &bufWriter{}
		rw := New(w)

		_, err := rw.Write([]byte("abc"), 3)
		Expect(err).To(BeNil())
		_, err = rw.Write([]byte("defgh"), 5)
		Expect(err).To(BeNil())
		_, err = rw.Write([]byte("ij"), 2)
		Expect(err).To(BeNil())
		Expect(rw.FinalRequest()).To(BeNil())

		Expect(w.buf.String()).To(ContainSubstring("Transfer-Encoding: chunked"))
		Expect(w.buf.String()).To(HaveSuffix("3\r\nabc\r\n5\r\ndefgh\r\n2\r\nij\r\n0\r\n\r\n"))
	})

	It("fails content_length on overrun", func() {
		w := &bufWriter{}
		rw := New(w)
		rw.SetHeader("Content-Length", "2")
		rw.WriteHeader(200)

		_, err := rw.Write([]byte("abc"), 3)
		Expect(err).NotTo(BeNil())
		Expect(err.Is(errs.CodeHTTPContentLength)).To(BeTrue())
	})

	It("Error emits a plain-text response with exact framing", func() {
		w := &bufWriter{}
		rw := New(w)
		Expect(Error(rw, 404, "")).To(BeNil())

		Expect(w.buf.String()).To(ContainSubstring("HTTP/1.1 404 Not Found\r\n"))
		Expect(w.buf.String()).To(ContainSubstring("Content-Type: text/plain; charset=utf-8"))
		Expect(w.buf.String()).To(HaveSuffix("Not Found"))
	})

	It("FinalRequest with nothing written declares 200 and flushes", func() {
		w := &bufWriter{}
		rw := New(w)
		Expect(rw.FinalRequest()).To(BeNil())
		Expect(w.buf.String()).To(ContainSubstring("HTTP/1.1 200 OK\r\n"))
	})
})
