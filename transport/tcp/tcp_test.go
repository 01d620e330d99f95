//go:build linux

package tcp_test

import (
	"net"
	"strconv"
	"time"

	"github.com/sabouaram/coco/network/protocol"
	"github.com/sabouaram/coco/reactor"
	. "github.com/sabouaram/coco/transport/tcp"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("tcp transport", func() {
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

	It("accepts a dialed connection and exchanges bytes both ways", func() {
		ln, lerr := Listen(r, protocol.NetworkTCP, "127.0.0.1", 0)
		Expect(lerr).To(BeNil())
		defer ln.Close()

		_, portStr, err := net.SplitHostPort(ln.Addr())
		Expect(err).NotTo(HaveOccurred())
		port, err := strconv.Atoi(portStr)
		Expect(err).NotTo(HaveOccurred())

		serverGotIt := make(chan string, 1)
		go func() {
			c, aerr := ln.Accept(time.Now().Add(2 * time.Second))
			if aerr != nil {
				serverGotIt <- ""
				return
			}
			defer c.Close()
			buf := make([]byte, 5)
			_, _ = c.ReadFully(buf, 5)
			_, _ = c.Write(buf, 5)
			serverGotIt <- string(buf)
		}()

		cl, derr := Dial(r, protocol.NetworkTCP, "127.0.0.1", port, time.Second)
		Expect(derr).To(BeNil())
		defer cl.Close()

		_, werr := cl.Write([]byte("hello"), 5)
		Expect(werr).To(BeNil())

		echoBuf := make([]byte, 5)
		_, rerr := cl.ReadFully(echoBuf, 5)
		Expect(rerr).To(BeNil())
		Expect(string(echoBuf)).To(Equal("hello"))

		Eventually(serverGotIt, time.Second).Should(Receive(Equal("hello")))
	})

	It("Dial fails socket_connect against a closed port", func() {
		_, derr := Dial(r, protocol.NetworkTCP, "127.0.0.1", 1, 200*time.Millisecond)
		Expect(derr).NotTo(BeNil())
	})

	It("rejects a datagram protocol", func() {
		_, lerr := Listen(r, protocol.NetworkUDP, "127.0.0.1", 0)
		Expect(lerr).NotTo(BeNil())
	})
})
