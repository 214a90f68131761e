package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracker_ConnectDisconnect(t *testing.T) {
	t.Run("should report transitions only on first and last session", func(t *testing.T) {
		req := require.New(t)
		tracker := NewTracker()

		req.True(tracker.Connect("alice"))
		req.False(tracker.Connect("alice"))
		req.True(tracker.IsOnline("alice"))

		// Closing one of two sessions keeps the user online.
		req.False(tracker.Disconnect("alice"))
		req.True(tracker.IsOnline("alice"))

		req.True(tracker.Disconnect("alice"))
		req.False(tracker.IsOnline("alice"))
	})

	t.Run("should ignore a disconnect for an unknown user", func(t *testing.T) {
		req := require.New(t)
		tracker := NewTracker()

		req.False(tracker.Disconnect("ghost"))
		req.Empty(tracker.Online())
	})
}

func TestTracker_Online(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	tracker.Connect("bob")
	tracker.Connect("alice")
	tracker.Connect("alice")

	req.Equal([]string{"alice", "bob"}, tracker.Online())
}

func TestTracker_Concurrency(t *testing.T) {
	req := require.New(t)
	tracker := NewTracker()

	const sessions = 50
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Connect("alice")
		}()
	}
	wg.Wait()

	req.True(tracker.IsOnline("alice"))
	req.Equal([]string{"alice"}, tracker.Online())

	for i := 0; i < sessions-1; i++ {
		req.False(tracker.Disconnect("alice"))
	}
	req.True(tracker.Disconnect("alice"))
}
