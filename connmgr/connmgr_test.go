package connmgr_test

import (
	"context"
	"errors"

	. "github.com/sabouaram/coco/connmgr"
	"github.com/sabouaram/coco/errs"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	It("Push dedups by pointer equality", func() {
		m := New()
		r := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, nil)

		m.Push(r)
		m.Push(r)
		Expect(m.Live()).To(Equal(1))
	})

	It("moves a routine from live to zombies on Remove", func() {
		m := New()
		r := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, nil)
		m.Push(r)

		m.Remove(r)
		Expect(m.Live()).To(Equal(0))
		Expect(m.Zombies()).To(Equal(1))
	})

	It("Destroy closes every zombie and aggregates independent failures", func() {
		m := New()
		boom1 := errors.New("close failed 1")
		boom2 := errors.New("close failed 2")

		r1 := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, func() error { return boom1 })
		r2 := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, func() error { return boom2 })

		m.Push(r1)
		m.Push(r2)
		m.Remove(r1)
		m.Remove(r2)

		err := m.Destroy()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("close failed 1"))
		Expect(err.Error()).To(ContainSubstring("close failed 2"))
		Expect(m.Zombies()).To(Equal(0))
	})

	It("ConnRoutine.Cycle remaps a graceful close to socket_closed and self-zombifies", func() {
		m := New()
		var r *ConnRoutine
		r = NewConnRoutine(m, func(ctx context.Context) errs.Error {
			return errs.CodeSocketRead.Error()
		}, nil)
		m.Push(r)

		err := r.Cycle(context.Background())
		Expect(err).To(HaveOccurred())

		ce, ok := err.(errs.Error)
		Expect(ok).To(BeTrue())
		Expect(ce.Is(errs.CodeSocketClosed)).To(BeTrue())

		Expect(m.Live()).To(Equal(0))
		Expect(m.Zombies()).To(Equal(1))
	})

	It("ListenRoutine.Cycle calls Destroy at the top of every iteration before accepting", func() {
		m := New()
		order := []string{}

		r := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, func() error {
			order = append(order, "destroyed")
			return nil
		})
		m.Push(r)
		m.Remove(r)

		calls := 0
		l := NewListenRoutine(m, func(ctx context.Context) errs.Error {
			order = append(order, "accepted")
			calls++
			return errs.CodeSocketClosed.Error()
		}, func() bool { return calls > 0 })

		err := l.Cycle(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(order).To(Equal([]string{"destroyed", "accepted"}))
	})

	It("bounds concurrently-live routines when built with NewWithLimit", func() {
		m := NewWithLimit(1)
		Expect(m.Acquire(context.Background())).To(BeNil())

		ctx, cancel := context.WithTimeout(context.Background(), 0)
		defer cancel()
		Expect(m.Acquire(ctx)).To(HaveOccurred())

		r := NewConnRoutine(m, func(ctx context.Context) errs.Error { return nil }, nil)
		m.Push(r)
		m.Remove(r)

		Expect(m.Acquire(context.Background())).To(BeNil())
	})
})
