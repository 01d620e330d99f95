//go:build linux

package socket_test

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/coco/reactor"
	. "github.com/sabouaram/coco/socket"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Socket", func() {
	var r *reactor.Reactor
	var fds [2]int

	BeforeEach(func() {
		var err error
		r, err = reactor.Init(nil)
		Expect(err).To(BeNil())
		go func() { _ = r.Run() }()

		fds, err = unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
	})

	It("Read returns bytes written from the peer fd", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()

		go func() {
			time.Sleep(10 * time.Millisecond)
			_, _ = unix.Write(fds[1], []byte("ping"))
		}()

		buf := make([]byte, 16)
		n, rerr := s.Read(buf, len(buf))
		Expect(rerr).To(BeNil())
		Expect(string(buf[:n])).To(Equal("ping"))
		Expect(s.RecvBytes()).To(Equal(int64(4)))
	})

	It("ReadFully blocks until exactly n bytes have arrived", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()

		go func() {
			_, _ = unix.Write(fds[1], []byte("AB"))
			time.Sleep(10 * time.Millisecond)
			_, _ = unix.Write(fds[1], []byte("CD"))
		}()

		buf := make([]byte, 4)
		n, rerr := s.ReadFully(buf, 4)
		Expect(rerr).To(BeNil())
		Expect(n).To(Equal(4))
		Expect(string(buf)).To(Equal("ABCD"))
	})

	It("Write delivers all bytes to the peer fd", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()

		payload := []byte("hello, peer")
		n, werr := s.Write(payload, len(payload))
		Expect(werr).To(BeNil())
		Expect(n).To(Equal(len(payload)))
		Expect(s.SendBytes()).To(Equal(int64(len(payload))))

		got := make([]byte, len(payload))
		_, rerr := unix.Read(fds[1], got)
		Expect(rerr).NotTo(HaveOccurred())
		Expect(string(got)).To(Equal(string(payload)))
	})

	It("reports socket_read when the peer closes", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()

		Expect(unix.Close(fds[1])).To(Succeed())

		buf := make([]byte, 16)
		_, rerr := s.Read(buf, len(buf))
		Expect(rerr).NotTo(BeNil())
	})

	It("reports socket_timeout when the recv deadline elapses", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()
		defer unix.Close(fds[1])

		s.SetRecvTimeout(20 * time.Millisecond)

		buf := make([]byte, 16)
		_, rerr := s.Read(buf, len(buf))
		Expect(rerr).NotTo(BeNil())
	})

	It("WriteLargeIovs chunks past the 1024-iovec platform ceiling", func() {
		s, serr := New(fds[0], r)
		Expect(serr).To(BeNil())
		defer s.Close()

		iov := make([][]byte, 1500)
		for i := range iov {
			iov[i] = []byte{byte(i % 251)}
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			drain := make([]byte, 1500)
			total := 0
			for total < 1500 {
				n, _ := unix.Read(fds[1], drain[total:])
				if n <= 0 {
					break
				}
				total += n
			}
		}()

		n, werr := s.WriteLargeIovs(iov)
		Expect(werr).To(BeNil())
		Expect(n).To(Equal(1500))

		Eventually(done, time.Second).Should(BeClosed())
	})
})
