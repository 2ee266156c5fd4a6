package events_test

import (
	"context"
	"errors"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/travel-approval/internal/core/events"
	"github.com/frahmantamala/travel-approval/pkg/logger"
)

var _ = Describe("EventBus", func() {
	var bus *events.EventBus

	BeforeEach(func() {
		bus = events.NewEventBus(logger.Discard())
	})

	It("delivers published events to every subscriber", func() {
		var calls int32
		handler := func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}
		bus.Subscribe(events.EventTypeRequestApproved, handler)
		bus.Subscribe(events.EventTypeRequestApproved, handler)

		Expect(bus.Publish(context.Background(), events.NewRequestEvent(events.EventTypeRequestApproved, "r1", "TO-2025-0001"))).To(Succeed())
		bus.Wait()
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(2)))
	})

	It("keeps handlers running after the publishing context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		var sawCancel atomic.Bool
		bus.Subscribe(events.EventTypeRequestRejected, func(hctx context.Context, e events.Event) error {
			sawCancel.Store(hctx.Err() != nil)
			return nil
		})
		cancel()
		Expect(bus.Publish(ctx, events.NewRequestEvent(events.EventTypeRequestRejected, "r1", "TO-2025-0001"))).To(Succeed())
		bus.Wait()
		Expect(sawCancel.Load()).To(BeFalse())
	})

	It("survives failing and panicking handlers", func() {
		bus.Subscribe(events.EventTypeRequestCancelled, func(ctx context.Context, e events.Event) error {
			return errors.New("boom")
		})
		bus.Subscribe(events.EventTypeRequestCancelled, func(ctx context.Context, e events.Event) error {
			panic("handler bug")
		})
		Expect(bus.Publish(context.Background(), events.NewRequestEvent(events.EventTypeRequestCancelled, "r1", ""))).To(Succeed())
		bus.Wait()
	})

	It("stops at the first failing handler when publishing synchronously", func() {
		bus.Subscribe(events.EventTypeRequestSigned, func(ctx context.Context, e events.Event) error {
			return errors.New("sink down")
		})
		err := bus.PublishSync(context.Background(), events.NewRequestEvent(events.EventTypeRequestSigned, "r1", ""))
		Expect(err).To(MatchError(ContainSubstring("sink down")))
	})

	It("subscribes one handler to all request events", func() {
		var calls int32
		bus.SubscribeAll(events.RequestEventTypes(), func(ctx context.Context, e events.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
		for _, t := range events.RequestEventTypes() {
			Expect(bus.Publish(context.Background(), events.NewRequestEvent(t, "r1", ""))).To(Succeed())
		}
		bus.Wait()
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(len(events.RequestEventTypes()))))
	})
})
