package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRecorderPublishAndLog(t *testing.T) {
	rec := NewRecorder(zap.NewNop())

	rec.Publish(Notification{
		Seq:       1,
		Type:      TypeRequestInitiated,
		Timestamp: time.Unix(1000, 0),
		RequestInitiated: &RequestInitiated{
			RequestID: "req-1",
			User:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			Assets:    []string{"0x1111111111111111111111111111111111111111"},
			Amounts:   []int64{100},
		},
	})
	rec.Publish(Notification{
		Seq:  2,
		Type: TypeDelayUpdated,
		DelayUpdated: &DelayUpdated{
			OldDelaySeconds: 604800,
			NewDelaySeconds: 1209600,
		},
	})

	log := rec.Notifications()
	require.Len(t, log, 2)
	require.Equal(t, uint64(1), log[0].Seq)
	require.Equal(t, TypeRequestInitiated, log[0].Type)
	require.NotNil(t, log[0].RequestInitiated)
	require.Equal(t, "req-1", log[0].RequestInitiated.RequestID)
	require.Equal(t, TypeDelayUpdated, log[1].Type)
	require.Equal(t, 2, rec.Len())
}

func TestRecorderSubscribe(t *testing.T) {
	rec := NewRecorder(nil)
	ch := rec.Subscribe()

	rec.Publish(Notification{Seq: 1, Type: TypeLossApplied, LossApplied: &LossApplied{
		RedemptionID:   "red-1",
		RequestID:      "req-1",
		Asset:          "0x1111111111111111111111111111111111111111",
		OriginalAmount: 80,
		SettledAmount:  76,
	}})

	select {
	case n := <-ch:
		require.Equal(t, uint64(1), n.Seq)
		require.Equal(t, int64(76), n.LossApplied.SettledAmount)
	case <-time.After(time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestRecorderLaggingSubscriberDoesNotBlock(t *testing.T) {
	rec := NewRecorder(zap.NewNop())
	rec.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			rec.Publish(Notification{Seq: uint64(i + 1), Type: TypeRequestFulfilled})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on lagging subscriber")
	}
	require.Equal(t, 200, rec.Len())
}

func TestRecorderRestore(t *testing.T) {
	rec := NewRecorder(zap.NewNop())
	rec.Restore([]Notification{
		{Seq: 41, Type: TypeRequestInitiated},
		{Seq: 42, Type: TypeRequestFulfilled},
	})

	require.Equal(t, 2, rec.Len())
	log := rec.Notifications()
	require.Equal(t, uint64(41), log[0].Seq)
	require.Equal(t, uint64(42), log[1].Seq)
}
