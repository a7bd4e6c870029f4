package identity_test

import (
	"testing"

	"github.com/jrsteele09/go-contractor-session/identity"
	"github.com/stretchr/testify/require"
)

func TestListeners_SubscribeNotify(t *testing.T) {
	var l identity.Listeners
	var got []identity.Subject

	unsubscribe := l.Subscribe(func(s identity.Subject) {
		got = append(got, s)
	})
	require.Equal(t, 1, l.Len())

	l.Notify(nil)
	require.Len(t, got, 1)

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, l.Len())

	l.Notify(nil)
	require.Len(t, got, 1)
}

func TestListeners_UnsubscribeFromCallback(t *testing.T) {
	var l identity.Listeners
	calls := 0

	var unsubscribe func()
	unsubscribe = l.Subscribe(func(identity.Subject) {
		calls++
		unsubscribe()
	})

	l.Notify(nil)
	l.Notify(nil)
	require.Equal(t, 1, calls)
	require.Equal(t, 0, l.Len())
}
