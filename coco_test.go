//go:build linux

package coco_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/coco"
	"github.com/sabouaram/coco/fastbuf"
	"github.com/sabouaram/coco/websocket"
)

var _ = Describe("Init", func() {
	It("starts and stops a reactor cleanly", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := coco.Init(ctx, nil)
		Expect(err).To(BeNil())
		Expect(rt.React).NotTo(BeNil())
		Expect(rt.Mgr).NotTo(BeNil())

		Expect(rt.Close()).To(Succeed())
	})

	It("re-arms package knobs when the config manager loads a file", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		rt, err := coco.Init(ctx, nil)
		Expect(err).To(BeNil())
		defer rt.Close()

		defer websocket.SetMaxPacket(4 * 1024 * 1024)
		defer fastbuf.SetSizes(128*1024, 10*1024*1024)

		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "coco.yaml")
		Expect(os.WriteFile(path, []byte("max_ws_packet: 1048576\nfastbuf_soft_size: 65536\n"), 0o600)).To(Succeed())

		Expect(rt.Config.Load(path)).To(Succeed())

		Expect(websocket.MaxPacket()).To(Equal(1048576))
		Expect(fastbuf.SoftSize()).To(Equal(65536))
	})
})
