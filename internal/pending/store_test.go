package pending_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumar-shivang/work-tracker/internal/pending"
	"github.com/kumar-shivang/work-tracker/pkg/types"
)

func statusRecord(content string) types.ActionRecord {
	return types.ActionRecord{Kind: types.ActionStatusUpdate, Content: content}
}

func TestPutAndRemove_RoundTrip(t *testing.T) {
	store := pending.New()

	id := store.Put(statusRecord("shipping the release"))
	require.Len(t, id, 8, "ticket ids are 8 characters")

	record, ok := store.Remove(id)
	require.True(t, ok)
	assert.Equal(t, "shipping the release", record.Content)
}

func TestRemove_IsConsuming(t *testing.T) {
	store := pending.New()
	id := store.Put(statusRecord("once"))

	_, ok := store.Remove(id)
	require.True(t, ok)

	_, ok = store.Remove(id)
	assert.False(t, ok, "a removed ticket must never resolve again")
}

func TestGet_DoesNotConsume(t *testing.T) {
	store := pending.New()
	id := store.Put(statusRecord("peek"))

	_, ok := store.Get(id)
	require.True(t, ok)
	_, ok = store.Get(id)
	require.True(t, ok)

	_, ok = store.Remove(id)
	assert.True(t, ok)
}

func TestRemove_UnknownID(t *testing.T) {
	store := pending.New()
	_, ok := store.Remove("nope1234")
	assert.False(t, ok)
}

func TestExpiry_EntriesBecomeUnresolvable(t *testing.T) {
	store := pending.New()
	id := store.PutWithTTL(statusRecord("short lived"), 10*time.Millisecond)

	time.Sleep(25 * time.Millisecond)

	_, ok := store.Get(id)
	assert.False(t, ok, "expired entries must not be readable")
	_, ok = store.Remove(id)
	assert.False(t, ok, "expired entries must not be resolvable")
}

func TestZeroTTL_ImmediatelyUnresolvable(t *testing.T) {
	store := pending.New()
	id := store.PutWithTTL(statusRecord("dead on arrival"), 0)

	_, ok := store.Remove(id)
	assert.False(t, ok)
}

func TestSweep_RemovesExpiredEntries(t *testing.T) {
	store := pending.New()
	store.PutWithTTL(statusRecord("a"), 5*time.Millisecond)
	store.PutWithTTL(statusRecord("b"), 5*time.Millisecond)
	keep := store.Put(statusRecord("c"))

	time.Sleep(15 * time.Millisecond)

	assert.Equal(t, 1, store.Len())
	_, ok := store.Get(keep)
	assert.True(t, ok)
}

// TestRemove_SingleWinner races many removers on one ticket; exactly one may
// win.
func TestRemove_SingleWinner(t *testing.T) {
	store := pending.New()
	id := store.Put(statusRecord("contested"))

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := store.Remove(id); ok {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one remover may receive the record")
}

func TestPut_RedrawsOnTicketCollision(t *testing.T) {
	store := pending.New()
	ids := []string{"aaaa1111", "aaaa1111", "bbbb2222"}
	next := 0
	store.SetIDSource(func() string {
		id := ids[next]
		next++
		return id
	})

	first := store.Put(statusRecord("one"))
	second := store.Put(statusRecord("two"))

	assert.Equal(t, "aaaa1111", first)
	assert.Equal(t, "bbbb2222", second, "a colliding id must be redrawn, not reused")

	record, ok := store.Get(first)
	require.True(t, ok)
	assert.Equal(t, "one", record.Content, "the live ticket must not be overwritten")
}

func TestNewWithTTL_NonPositiveFallsBackToDefault(t *testing.T) {
	store := pending.NewWithTTL(-1)
	id := store.Put(statusRecord("still alive"))

	_, ok := store.Get(id)
	assert.True(t, ok, "a non-positive store TTL must fall back to the default, not kill entries")
}
