//go:build linux

package udp_test

import (
	"net"
	"strconv"
	"time"

	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	. "github.com/sabouaram/coco/transport/udp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("udp transport", func() {
	var r *reactor.Reactor

	BeforeEach(func() {
		var err error
		r, err = reactor.Init(nil)
		Expect(err).To(BeNil())
		go func() { _ = r.Run() }()
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
	})

	It("delivers a dialed Write to a listening Recvfrom, and the echo back", func() {
		srv, serr := Listen(r, protocol.NetworkUDP, "127.0.0.1", 0)
		Expect(serr).To(BeNil())
		defer srv.Close()

		_, portStr, err := net.SplitHostPort(srv.Addr())
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())

		cl, cerr := Dial(r, protocol.NetworkUDP, "127.0.0.1", port)
		Expect(cerr).To(BeNil())
		defer cl.Close()

		Expect(cl.Write([]byte("ping"))).To(BeNil())

		buf := make([]byte, 16)
		n, from, rerr := srv.Recvfrom(buf)
		Expect(rerr).To(BeNil())
		Expect(string(buf[:n])).To(Equal("ping"))

		Expect(srv.Sendto([]byte("pong"), from)).To(BeNil())

		echo := make([]byte, 16)
		n2, rerr2 := cl.Read(echo)
		Expect(rerr2).To(BeNil())
		Expect(string(echo[:n2])).To(Equal("pong"))
	})

	It("reports socket_timeout when Recvfrom's deadline elapses", func() {
		srv, serr := Listen(r, protocol.NetworkUDP, "127.0.0.1", 0)
		Expect(serr).To(BeNil())
		defer srv.Close()

		srv.SetRecvTimeout(20 * time.Millisecond)
		buf := make([]byte, 16)
		_, _, rerr := srv.Recvfrom(buf)
		Expect(rerr).NotTo(BeNil())
	})

	It("rejects a stream protocol", func() {
		_, serr := Listen(r, protocol.NetworkTCP, "127.0.0.1", 0)
		Expect(serr).NotTo(BeNil())
	})
})
