package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	b := NewBroker[int]()
	a, c := b.Subscribe(), b.Subscribe()
	require.Equal(t, 2, b.Subscribers())

	one := 1
	b.Publish(&one)
	require.Equal(t, 1, *<-a)
	require.Equal(t, 1, *<-c)

	b.Unsubscribe(a)
	b.Unsubscribe(a)
	_, ok := <-a
	require.False(t, ok)
	require.Equal(t, 1, b.Subscribers())
}

func TestSlowSubscriberDropped(t *testing.T) {
	b := NewBrokerWithCapacity[int](1)
	slow := b.Subscribe()

	one, two := 1, 2
	b.Publish(&one)
	b.Publish(&two)
	require.Zero(t, b.Subscribers())

	require.Equal(t, 1, *<-slow)
	_, ok := <-slow
	require.False(t, ok, "a dropped subscriber sees its channel closed")
}
