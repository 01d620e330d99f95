//go:build linux

package httpserver_test

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"time"

	"github.com/sabouaram/coco/connmgr"
	"github.com/sabouaram/coco/corort"
	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/httpmsg"
	"github.com/sabouaram/coco/httpmux"
	"github.com/sabouaram/coco/httpwriter"
	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	"github.com/sabouaram/coco/transport/tcp"
	. "github.com/sabouaram/coco/httpserver"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeStream struct {
	src  *bytes.Reader
	sent bytes.Buffer
}

func (s *fakeStream) Read(buf []byte, n int) (int, errs.Error) {
	if n > len(buf) {
		n = len(buf)
	}
	nr, err := s.src.Read(buf[:n])
	if nr == 0 && err != nil {
		return 0, errs.CodeSocketRead.Error(err)
	}
	return nr, nil
}

func (s *fakeStream) Write(buf []byte, n int) (int, errs.Error) {
	s.sent.Write(buf[:n])
	return n, nil
}

func (s *fakeStream) WriteLargeIovs(iov [][]byte) (int, errs.Error) {
	total := 0
	for _, b := range iov {
		s.sent.Write(b)
		total += len(b)
	}
	return total, nil
}

func (s *fakeStream) SetRecvTimeout(time.Duration) {}
func (s *fakeStream) SetSendTimeout(time.Duration) {}
func (s *fakeStream) Close() error                 { return nil }

var _ = Describe("ServerConn", func() {
	It("serves one request and stops after Connection: close", func() {
		mux := httpmux.New()
		Expect(mux.Handle("/hello", httpmux.HandlerFunc(func(w *httpwriter.ResponseWriter, r httpmux.Request) {
			body := []byte("hi")
			w.SetHeader("Content-Length", "2")
			w.WriteHeader(200)
			_, _ = w.Write(body, len(body))
		}))).To(BeNil())

		raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"
		stream := &fakeStream{src: bytes.NewReader([]byte(raw))}

		sc := NewServerConn(stream, mux, nil)
		Expect(sc.DoCycle(context.Background())).To(BeNil())

		Expect(stream.sent.String()).To(ContainSubstring("HTTP/1.1 200 OK"))
		Expect(stream.sent.String()).To(ContainSubstring("hi"))
	})

	It("returns the 404 handler's error-free response for an unmatched path", func() {
		mux := httpmux.New()

		raw := "GET /missing HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"
		stream := &fakeStream{src: bytes.NewReader([]byte(raw))}

		sc := NewServerConn(stream, mux, nil)
		Expect(sc.DoCycle(context.Background())).To(BeNil())

		Expect(stream.sent.String()).To(ContainSubstring("HTTP/1.1 404"))
		Expect(stream.sent.String()).To(ContainSubstring("404 not found"))
	})

	It("loops for a second request when the connection is keep-alive", func() {
		mux := httpmux.New()
		calls := 0
		Expect(mux.Handle("/ping", httpmux.HandlerFunc(func(w *httpwriter.ResponseWriter, r httpmux.Request) {
			calls++
			body := []byte("pong")
			w.SetHeader("Content-Length", "4")
			w.WriteHeader(200)
			_, _ = w.Write(body, len(body))
		}))).To(BeNil())

		raw := "GET /ping HTTP/1.1\r\nHost: example.com\r\n\r\n" +
			"GET /ping HTTP/1.1\r\nHost: example.com\r\nConnection: close\r\n\r\n"
		stream := &fakeStream{src: bytes.NewReader([]byte(raw))}

		sc := NewServerConn(stream, mux, nil)
		Expect(sc.DoCycle(context.Background())).To(BeNil())
		Expect(calls).To(Equal(2))
	})
})

var _ = Describe("Server and Client end to end", func() {
	It("serves a GET over a real reactor-backed connection", func() {
		r, rerr := reactor.Init(nil)
		Expect(rerr).To(BeNil())
		go func() { _ = r.Run() }()
		defer r.Close()

		ln, lerr := tcp.Listen(r, protocol.NetworkTCP, "127.0.0.1", 0)
		Expect(lerr).To(BeNil())

		mux := httpmux.New()
		Expect(mux.Handle("/", httpmux.HandlerFunc(func(w *httpwriter.ResponseWriter, req httpmux.Request) {
			body := []byte("hello world")
			w.SetHeader("Content-Type", "text/jsonp")
			w.SetHeader("Content-Length", "11")
			w.WriteHeader(200)
			_, _ = w.Write(body, len(body))
		}))).To(BeNil())

		mgr := connmgr.New()
		srv := NewServer(r, ln, mux, nil, mgr, nil)

		co := corort.New("http-listen", corort.HandlerFunc(srv.Routine().Cycle), r, nil)
		Expect(co.Start(context.Background())).To(BeNil())
		defer co.Stop()
		defer srv.Close()

		_, portStr, perr := net.SplitHostPort(srv.Addr())
		Expect(perr).NotTo(HaveOccurred())
		port, aerr := strconv.Atoi(portStr)
		Expect(aerr).NotTo(HaveOccurred())

		cl := Initialize(r, false, "127.0.0.1", port, 2*time.Second)
		resp, gerr := cl.Get("/")
		Expect(gerr).To(BeNil())
		Expect(resp.StatusCode()).To(Equal(200))
		Expect(resp.Get("Content-Type")).To(Equal("text/jsonp"))

		body, berr := httpmsg.ReadAll(resp.Body)
		Expect(berr).To(BeNil())
		Expect(string(body)).To(Equal("hello world"))
	})
})
