package cart

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAdd_AccumulatesAcrossTurns(t *testing.T) {
	s := NewStore(testLogger())

	s.Add("sess-1", "Burger", 2)
	s.Add("sess-1", "Burger", 1)

	require.Equal(t, []Line{{Name: "Burger", Quantity: 3}}, s.Snapshot("sess-1"))
}

func TestSnapshot_KeepsInsertionOrder(t *testing.T) {
	s := NewStore(testLogger())

	s.Add("sess-1", "Burger", 2)
	s.Add("sess-1", "Fries", 1)
	s.Add("sess-1", "Burger", 1)

	require.Equal(t, []Line{
		{Name: "Burger", Quantity: 3},
		{Name: "Fries", Quantity: 1},
	}, s.Snapshot("sess-1"))
}

func TestSnapshot_UnknownSessionIsEmptyNotError(t *testing.T) {
	s := NewStore(testLogger())
	require.Empty(t, s.Snapshot("never-seen"))
}

func TestRemove_FloorsAtZeroAndPrunes(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Fries", 1)

	require.True(t, s.Remove("sess-1", "Fries", 5))
	require.Empty(t, s.Snapshot("sess-1"))
}

func TestRemove_PartialQuantity(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 3)

	require.True(t, s.Remove("sess-1", "Burger", 1))
	require.Equal(t, []Line{{Name: "Burger", Quantity: 2}}, s.Snapshot("sess-1"))
}

func TestRemove_AbsentItemReportsNotPresent(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 1)

	require.False(t, s.Remove("sess-1", "Fries", 1))
	require.Equal(t, []Line{{Name: "Burger", Quantity: 1}}, s.Snapshot("sess-1"))
}

func TestClear_DropsSession(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 2)

	s.Clear("sess-1")
	require.Empty(t, s.Snapshot("sess-1"))
}

func TestSessions_AreIndependent(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 2)
	s.Add("sess-2", "Fries", 1)

	s.Clear("sess-1")
	require.Equal(t, []Line{{Name: "Fries", Quantity: 1}}, s.Snapshot("sess-2"))
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := NewStore(testLogger())

	err := s.Checkout("sess-1", func([]Line) error {
		t.Fatal("persist must not run for an empty cart")
		return nil
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCheckout_PersistFailureLeavesCartIntact(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 2)

	persistErr := errors.New("storage down")
	err := s.Checkout("sess-1", func([]Line) error { return persistErr })

	require.ErrorIs(t, err, persistErr)
	require.Equal(t, []Line{{Name: "Burger", Quantity: 2}}, s.Snapshot("sess-1"))
}

func TestCheckout_SuccessClearsCart(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 2)
	s.Add("sess-1", "Fries", 1)

	var persisted []Line
	err := s.Checkout("sess-1", func(lines []Line) error {
		persisted = lines
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, []Line{
		{Name: "Burger", Quantity: 2},
		{Name: "Fries", Quantity: 1},
	}, persisted)
	require.Empty(t, s.Snapshot("sess-1"))
}

func TestConcurrentAdds_NoLostUpdate(t *testing.T) {
	s := NewStore(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add("sess-1", "Burger", 1)
		}()
	}
	wg.Wait()

	require.Equal(t, []Line{{Name: "Burger", Quantity: 2}}, s.Snapshot("sess-1"))
}

func TestConcurrentMixedOps_NetQuantityIsFlooredSum(t *testing.T) {
	s := NewStore(testLogger())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Add("sess-1", "Burger", 2)
		}()
		go func() {
			defer wg.Done()
			s.Add("sess-1", "Fries", 1)
		}()
	}
	wg.Wait()

	require.ElementsMatch(t, []Line{
		{Name: "Burger", Quantity: 2 * n},
		{Name: "Fries", Quantity: n},
	}, s.Snapshot("sess-1"))
}

func TestAddAfterClear_LandsInFreshCart(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("sess-1", "Burger", 1)
	s.Clear("sess-1")
	s.Add("sess-1", "Fries", 1)

	require.Equal(t, []Line{{Name: "Fries", Quantity: 1}}, s.Snapshot("sess-1"))
}

func TestEvictIdle_DropsOnlyStaleSessions(t *testing.T) {
	s := NewStore(testLogger())
	s.Add("stale", "Burger", 1)
	s.Add("fresh", "Fries", 1)

	s.mu.Lock()
	s.sessions["stale"].lastActive = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	s.evictIdle(30 * time.Minute)

	require.Empty(t, s.Snapshot("stale"))
	require.Equal(t, []Line{{Name: "Fries", Quantity: 1}}, s.Snapshot("fresh"))
}
