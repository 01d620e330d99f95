package httpparse_test

import (
	"bytes"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	. "github.com/sabouaram/coco/httpparse"

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

var _ = Describe("ParseMessage", func() {
	It("parses a request line and headers, consuming exactly the header block", func() {
		wire := "GET /foo?a=1 HTTP/1.1\r\nHost: example.com\r\nX-Test: yes\r\n\r\nBODYBODY"
		r := &stubReader{src: bytes.NewReader([]byte(wire))}
		buf := fastbuf.New()
		msg := &Message{}

		Expect(ParseMessage(r, buf, msg, true)).To(BeNil())
		Expect(msg.Method).To(Equal("GET"))
		Expect(msg.URL).To(Equal("/foo?a=1"))
		Expect(msg.Proto).To(Equal("HTTP/1.1"))
		Expect(msg.Get("Host")).To(Equal("example.com"))
		Expect(msg.Get("X-Test")).To(Equal("yes"))
		Expect(msg.State).To(Equal(StateHeaderComplete))

		Expect(string(buf.Bytes())).To(Equal("BODYBODY"))
	})

	It("preserves the wire order of header fields", func() {
		wire := "GET / HTTP/1.1\r\n" +
			"Host: example.com\r\n" +
			"X-Second: 2\r\n" +
			"X-First: 1\r\n" +
			"X-Third: 3\r\n" +
			"\r\n"
		r := &stubReader{src: bytes.NewReader([]byte(wire))}
		buf := fastbuf.New()
		msg := &Message{}

		Expect(ParseMessage(r, buf, msg, true)).To(BeNil())

		names := make([]string, 0, len(msg.Headers))
		for _, h := range msg.Headers {
			names = append(names, h.Name)
		}
		Expect(names).To(Equal([]string{"Host", "X-Second", "X-First", "X-Third"}))
	})

	It("parses a status line", func() {
		wire := "HTTP/1.1 404 Not Found\r\nContent-Length: 0\r\n\r\n"
		r := &stubReader{src: bytes.NewReader([]byte(wire))}
		buf := fastbuf.New()
		msg := &Message{}

		Expect(ParseMessage(r, buf, msg, false)).To(BeNil())
		Expect(msg.Proto).To(Equal("HTTP/1.1"))
		Expect(msg.StatusCode).To(Equal(404))
		Expect(msg.Reason).To(Equal("Not Found"))
	})

	It("ShouldKeepAlive defaults true on HTTP/1.1 and honors Connection: close", func() {
		msg := &Message{Proto: "HTTP/1.1"}
		Expect(msg.ShouldKeepAlive()).To(BeTrue())

		msg.Headers = append(msg.Headers, Header{Name: "Connection", Value: "close"})
		Expect(msg.ShouldKeepAlive()).To(BeFalse())
	})
})
