package withdrawal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const otherUser = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

func newTestRequest(id, user string, amount int64) *Request {
	return NewRequest(id, user, []string{assetX}, []int64{amount}, 1000)
}

func TestLedgerPutGet(t *testing.T) {
	ledger := NewRequestLedger()

	require.False(t, ledger.Has("req-1"))
	_, err := ledger.Get("req-1")
	require.ErrorIs(t, err, ErrNotFound)

	ledger.Put(newTestRequest("req-1", testUser, 100))

	require.True(t, ledger.Has("req-1"))
	got, err := ledger.Get("req-1")
	require.NoError(t, err)
	require.Equal(t, "req-1", got.ID)
	require.Equal(t, 1, ledger.Count())
}

func TestLedgerGetReturnsCopy(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-1", testUser, 100))

	got, err := ledger.Get("req-1")
	require.NoError(t, err)
	got.WithdrawableAmounts[0] = 1

	again, err := ledger.Get("req-1")
	require.NoError(t, err)
	require.Equal(t, int64(100), again.WithdrawableAmounts[0])
}

func TestLedgerGetBatch(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-1", testUser, 100))
	ledger.Put(newTestRequest("req-2", testUser, 50))

	reqs, err := ledger.GetBatch([]string{"req-2", "req-1"})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	require.Equal(t, "req-2", reqs[0].ID)
	require.Equal(t, "req-1", reqs[1].ID)

	_, err = ledger.GetBatch([]string{"req-1", "req-missing"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLedgerUserIndexOrder(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-3", testUser, 10))
	ledger.Put(newTestRequest("req-1", testUser, 20))
	ledger.Put(newTestRequest("req-2", otherUser, 30))

	reqs := ledger.UserRequests(testUser)
	require.Len(t, reqs, 2)
	require.Equal(t, "req-3", reqs[0].ID)
	require.Equal(t, "req-1", reqs[1].ID)

	require.Equal(t, []string{"req-3", "req-1"}, ledger.UserIndex(testUser))
	require.Empty(t, ledger.UserRequests(testReceiver))
}

func TestLedgerOverwriteKeepsIndexPosition(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-1", testUser, 100))
	ledger.Put(newTestRequest("req-2", testUser, 50))

	updated := newTestRequest("req-1", testUser, 100)
	updated.Ready = true
	ledger.Put(updated)

	require.Equal(t, []string{"req-1", "req-2"}, ledger.UserIndex(testUser))
	got, err := ledger.Get("req-1")
	require.NoError(t, err)
	require.True(t, got.Ready)
}

func TestLedgerDeleteCompactsIndex(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-1", testUser, 100))
	ledger.Put(newTestRequest("req-2", testUser, 50))
	ledger.Put(newTestRequest("req-3", testUser, 25))

	ledger.Delete("req-2")

	require.False(t, ledger.Has("req-2"))
	require.Equal(t, []string{"req-1", "req-3"}, ledger.UserIndex(testUser))

	ledger.Delete("req-1")
	ledger.Delete("req-3")
	require.Nil(t, ledger.UserIndex(testUser))

	// unknown id is a no-op
	ledger.Delete("req-ghost")
	require.Equal(t, 0, ledger.Count())
}

func TestLedgerRestoreIndex(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.RestoreIndex(testUser, []string{"req-9", "req-4"})
	require.Equal(t, []string{"req-9", "req-4"}, ledger.UserIndex(testUser))

	ledger.RestoreIndex(testUser, nil)
	require.Nil(t, ledger.UserIndex(testUser))
}

func TestLedgerAllSorted(t *testing.T) {
	ledger := NewRequestLedger()
	ledger.Put(newTestRequest("req-c", testUser, 1))
	ledger.Put(newTestRequest("req-a", otherUser, 2))
	ledger.Put(newTestRequest("req-b", testUser, 3))

	all := ledger.All()
	require.Len(t, all, 3)
	require.Equal(t, "req-a", all[0].ID)
	require.Equal(t, "req-b", all[1].ID)
	require.Equal(t, "req-c", all[2].ID)
}

func TestRegistrar(t *testing.T) {
	reg := NewRegistrar()

	require.False(t, reg.Has("red-1"))
	_, err := reg.Get("red-1")
	require.ErrorIs(t, err, ErrNotFound)

	rd := &Redemption{
		ID:              "red-1",
		RequestIDs:      []string{"req-1"},
		Assets:          []string{assetX},
		PromisedAmounts: []int64{200},
		Receiver:        testReceiver,
	}
	reg.Put(rd)

	require.True(t, reg.Has("red-1"))
	got, err := reg.Get("red-1")
	require.NoError(t, err)
	require.Equal(t, int64(200), got.PromisedAmounts[0])

	// mutation of the returned copy must not leak back
	got.PromisedAmounts[0] = 0
	again, err := reg.Get("red-1")
	require.NoError(t, err)
	require.Equal(t, int64(200), again.PromisedAmounts[0])

	reg.Put(&Redemption{ID: "red-0", Receiver: testReceiver})
	all := reg.All()
	require.Len(t, all, 2)
	require.Equal(t, "red-0", all[0].ID)
	require.Equal(t, "red-1", all[1].ID)

	reg.Delete("red-1")
	require.False(t, reg.Has("red-1"))
	require.Equal(t, 1, reg.Count())
}
