package websocket_test

import (
	"bytes"
	"crypto/sha1"
	"encoding/base64"
	"strings"

	"github.com/sabouaram/coco/errs"
	"github.com/sabouaram/coco/fastbuf"
	. "github.com/sabouaram/coco/websocket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const guid = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func computeAccept(key string) string {
	h := sha1.New()
	_, _ = h.Write([]byte(key + guid))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func extractKey(req string) string {
	for _, line := range strings.Split(req, "\r\n") {
		if strings.HasPrefix(line, "Sec-WebSocket-Key: ") {
			return strings.TrimPrefix(line, "Sec-WebSocket-Key: ")
		}
	}
	return ""
}

type loopBuf struct{ resp bytes.Buffer }

func (l *loopBuf) Read(b []byte, n int) (int, errs.Error) {
	if n > len(b) {
		n = len(b)
	}
	nr, err := l.resp.Read(b[:n])
	if nr == 0 && err != nil {
		return 0, errs.CodeSocketRead.Error(err)
	}
	return nr, nil
}

type acceptingWriter struct{ lb *loopBuf }

func (w *acceptingWriter) Write(buf []byte, n int) (int, errs.Error) {
	key := extractKey(string(buf[:n]))
	w.lb.resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + computeAccept(key) + "\r\n\r\n")
	return n, nil
}

type rejectingWriter struct{ lb *loopBuf }

func (w *rejectingWriter) Write(buf []byte, n int) (int, errs.Error) {
	w.lb.resp.WriteString("HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: bogus==\r\n\r\n")
	return n, nil
}

var _ = Describe("Upgrade", func() {
	It("accepts a handshake whose Sec-WebSocket-Accept matches the derived digest", func() {
		lb := &loopBuf{}
		w := &acceptingWriter{lb: lb}
		buf := fastbuf.New()

		Expect(Upgrade(w, lb, buf, "example.com", "/chat")).To(BeNil())
	})

	It("rejects a handshake with a mismatched Sec-WebSocket-Accept", func() {
		lb := &loopBuf{}
		w := &rejectingWriter{lb: lb}
		buf := fastbuf.New()

		err := Upgrade(w, lb, buf, "example.com", "/chat")
		Expect(err).NotTo(BeNil())
		Expect(err.Is(errs.CodeWSUpgradeRejected)).To(BeTrue())
	})
})
