package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreKeepsStateWithinTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m := NewMemoryStore(5 * time.Minute)
	m.now = func() time.Time { return now }

	s, release, err := m.Acquire(ctx, "customer:abc", TopMenu{})
	require.NoError(t, err)
	s.State = AwaitSeat{BusID: 4, AvailableSeats: 12}
	require.NoError(t, m.Save(ctx, s))
	release()

	now = now.Add(4 * time.Minute)
	s, release, err = m.Acquire(ctx, "customer:abc", TopMenu{})
	require.NoError(t, err)
	release()
	assert.Equal(t, AwaitSeat{BusID: 4, AvailableSeats: 12}, s.State)
}

func TestMemoryStoreExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m := NewMemoryStore(5 * time.Minute)
	m.now = func() time.Time { return now }

	s, release, err := m.Acquire(ctx, "operator:x", AwaitPIN{})
	require.NoError(t, err)
	s.State = OperatorMenu{}
	s.Operator = &Operator{ID: 1, Name: "Nile"}
	require.NoError(t, m.Save(ctx, s))
	release()

	now = now.Add(6 * time.Minute)
	s, release, err = m.Acquire(ctx, "operator:x", AwaitPIN{})
	require.NoError(t, err)
	release()
	assert.Equal(t, StepAwaitPIN, s.Step())
	assert.Nil(t, s.Operator)
}

func TestMemoryStoreSweepsOtherKeys(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	m := NewMemoryStore(time.Minute)
	m.now = func() time.Time { return now }

	for _, k := range []string{"a", "b", "c"} {
		_, release, err := m.Acquire(ctx, k, TopMenu{})
		require.NoError(t, err)
		release()
	}
	assert.Equal(t, 3, m.Len())

	now = now.Add(2 * time.Minute)
	_, release, err := m.Acquire(ctx, "d", TopMenu{})
	require.NoError(t, err)
	release()
	assert.Equal(t, 1, m.Len())
}

func TestMemoryStoreSerialisesSameKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore(time.Minute)

	const rounds = 50
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, release, err := m.Acquire(ctx, "k", AwaitSeat{})
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			st := s.State.(AwaitSeat)
			st.AvailableSeats++
			s.State = st
			_ = m.Save(ctx, s)
		}()
	}
	wg.Wait()

	s, release, err := m.Acquire(ctx, "k", AwaitSeat{})
	require.NoError(t, err)
	release()
	assert.Equal(t, rounds, s.State.(AwaitSeat).AvailableSeats)
}

func TestKeyedMutexDropsIdleEntries(t *testing.T) {
	var k KeyedMutex
	unlock := k.Lock("a")
	other := k.Lock("b")
	other()
	unlock()
	unlock()

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

func TestSessionEnvelopeKeepsConcreteState(t *testing.T) {
	in := Session{
		Key:        "customer:1",
		State:      AwaitBus{Buses: []BusRef{{ID: 9, Route: "Juba - Torit", TotalSeats: 40, AvailableSeats: 3}}},
		LastActive: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC),
	}
	data, err := in.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"await_bus"`)

	var out Session
	require.NoError(t, out.UnmarshalJSON(data))
	st, ok := out.State.(AwaitBus)
	require.True(t, ok)
	ref, ok := st.Pick(1)
	require.True(t, ok)
	assert.Equal(t, int64(9), ref.ID)
	_, ok = st.Pick(2)
	assert.False(t, ok)
}

func TestLogoutReturnsToPIN(t *testing.T) {
	s := &Session{State: OperatorMenu{}, Operator: &Operator{ID: 2}}
	s.Logout()
	assert.Nil(t, s.Operator)
	assert.Equal(t, AwaitPIN{}, s.State)
}
