/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package limiter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWaitQueue(t *testing.T) {
	q := newWaitQueue()
	require.Nil(t, q.PopFront())

	w1 := q.PushBack("1")
	w2 := q.PushBack("2")
	w3 := q.PushBack("3")
	require.Equal(t, 3, q.Len())
	require.True(t, q.Contains("2"))

	require.True(t, q.Remove(w2))
	require.False(t, q.Contains("2"))
	require.False(t, q.Remove(w2))
	require.Equal(t, 2, q.Len())

	require.Same(t, w1, q.PopFront())
	require.False(t, q.Remove(w1), "popped waiter is not queued anymore")

	// The same ID may be queued again, the stale waiter must not remove the new one.
	w1Again := q.PushBack("1")
	require.False(t, q.Remove(w1))
	require.True(t, q.Contains("1"))

	require.Same(t, w3, q.PopFront())
	require.Same(t, w1Again, q.PopFront())
	require.Equal(t, 0, q.Len())
}
