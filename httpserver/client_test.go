//go:build linux

package httpserver_test

import (
	. "github.com/sabouaram/coco/httpserver"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Initialize", func() {
	It("defaults the port to 80 for plain HTTP", func() {
		c := Initialize(nil, false, "example.com", 0, 0)
		Expect(c.Port()).To(Equal(80))
	})

	It("defaults the port to 443 for HTTPS", func() {
		c := Initialize(nil, true, "example.com", 0, 0)
		Expect(c.Port()).To(Equal(443))
	})

	It("keeps an explicit port even for HTTPS", func() {
		c := Initialize(nil, true, "example.com", 8443, 0)
		Expect(c.Port()).To(Equal(8443))
	})
})

var _ = Describe("SetHeader", func() {
	It("keeps headers in call order and replaces a repeated name in place", func() {
		c := Initialize(nil, false, "example.com", 0, 0)
		c.SetHeader("X-First", "1")
		c.SetHeader("X-Second", "2")
		c.SetHeader("X-Third", "3")
		c.SetHeader("x-first", "updated")

		hs := c.Headers()
		Expect(hs).To(HaveLen(3))
		Expect(hs[0].Name).To(Equal("X-First"))
		Expect(hs[0].Value).To(Equal("updated"))
		Expect(hs[1].Name).To(Equal("X-Second"))
		Expect(hs[2].Name).To(Equal("X-Third"))
	})

	It("drops a malformed header instead of recording it", func() {
		c := Initialize(nil, false, "example.com", 0, 0)
		c.SetHeader("Bad Name", "x")
		c.SetHeader("X-Ok", "bad\r\nvalue")
		Expect(c.Headers()).To(BeEmpty())
	})
})
