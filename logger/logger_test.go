package logger_test

import (
	"bytes"

	"github.com/hashicorp/go-hclog"

	. "github.com/sabouaram/coco/logger"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logger", func() {
	It("filters by level threshold", func() {
		buf := &bytes.Buffer{}
		l := New(buf, WarnLevel)

		l.Info("should not appear", nil)
		Expect(buf.String()).To(BeEmpty())

		l.Warn("should appear", nil)
		Expect(buf.String()).To(ContainSubstring("should appear"))
	})

	It("gates debug categories by mask", func() {
		buf := &bytes.Buffer{}
		l := New(buf, DebugLevel)
		l.SetDebugMask(DebugHTTP)

		l.Debug(DebugSocket, "socket debug", nil)
		Expect(buf.String()).To(BeEmpty())

		l.Debug(DebugHTTP, "http debug", nil)
		Expect(buf.String()).To(ContainSubstring("http debug"))
	})

	It("adapts to hclog.Logger for dependencies expecting one", func() {
		buf := &bytes.Buffer{}
		l := New(buf, InfoLevel)

		var hl hclog.Logger = NewHashicorpHCLog(l)
		hl.Info("via hclog facade")

		Expect(buf.String()).To(ContainSubstring("via hclog facade"))
		Expect(hl.IsInfo()).To(BeTrue())
	})

	It("NilLogger discards everything", func() {
		l := NilLogger()
		Expect(l.GetLevel()).To(Equal(NilLevel))
	})
})
