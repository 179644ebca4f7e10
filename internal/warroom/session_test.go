package warroom

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionTrySend(t *testing.T) {
	s := NewSession(2)

	assert.True(t, s.TrySend([]byte("a")))
	assert.True(t, s.TrySend([]byte("b")))

	assert.Equal(t, "a", string(<-s.Outbound()))
	assert.Equal(t, "b", string(<-s.Outbound()))
}

func TestSessionTrySendDropsOldest(t *testing.T) {
	s := NewSession(2)

	require.True(t, s.TrySend([]byte("a")))
	require.True(t, s.TrySend([]byte("b")))
	require.True(t, s.TrySend([]byte("c")))

	// "a" was sacrificed for "c": freshest frames win.
	assert.Equal(t, "b", string(<-s.Outbound()))
	assert.Equal(t, "c", string(<-s.Outbound()))
}

func TestSessionTrySendAfterClose(t *testing.T) {
	s := NewSession(2)
	s.Close()

	assert.False(t, s.TrySend([]byte("a")))
}

func TestSessionCloseIdempotent(t *testing.T) {
	s := NewSession(2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()

	select {
	case <-s.Done():
	default:
		t.Fatal("Done channel not closed")
	}
}

func TestSessionConcurrentSendAndClose(t *testing.T) {
	s := NewSession(4)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.TrySend(fmt.Appendf(nil, "frame %d", i))
		}(i)
	}
	s.Close()
	wg.Wait()
}

func TestSessionIDsUnique(t *testing.T) {
	a := NewSession(1)
	b := NewSession(1)
	assert.NotEqual(t, a.ID(), b.ID())
}
