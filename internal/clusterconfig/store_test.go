package clusterconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreNodeIdempotent(t *testing.T) {
	var notified []NodeID
	s := New(1, func(id NodeID) { notified = append(notified, id) })

	s.StoreNode(Node{ID: 2, Active: true, Comment: "x"})
	s.StoreNode(Node{ID: 2, Active: true, Comment: "x"}) // identical, must not notify again

	assert.Equal(t, []NodeID{2}, notified)

	n, ok := s.Node(2)
	require.True(t, ok)
	assert.True(t, n.Active)
}

func TestStoreNodeChangeNotifies(t *testing.T) {
	count := 0
	s := New(1, func(NodeID) { count++ })
	s.StoreNode(Node{ID: 2, Active: false})
	s.StoreNode(Node{ID: 2, Active: true})
	assert.Equal(t, 2, count)
}

func TestDropNodeRemovesPaths(t *testing.T) {
	s := New(1, nil)
	s.StoreNode(Node{ID: 2})
	s.StorePath(Path{Server: 2, Client: 1, ConnInfo: "x"})
	s.DropNode(2)

	_, ok := s.Node(2)
	assert.False(t, ok)
	_, ok = s.Path(2, 1)
	assert.False(t, ok)
}

func TestLastEventMonotonic(t *testing.T) {
	s := New(1, nil)
	s.SetLastEvent(5, 100)
	s.SetLastEvent(5, 50) // must not regress
	assert.Equal(t, int64(100), s.LastEvent(5))
	s.SetLastEvent(5, 150)
	assert.Equal(t, int64(150), s.LastEvent(5))
}

func TestSubscriptionsFiltersByReceiver(t *testing.T) {
	s := New(1, nil)
	s.StoreSubscribe(Subscription{Set: 1, Provider: 2, Receiver: 1})
	s.StoreSubscribe(Subscription{Set: 1, Provider: 2, Receiver: 9})

	subs := s.Subscriptions(1)
	require.Len(t, subs, 1)
	assert.Equal(t, NodeID(1), subs[0].Receiver)
}

func TestEnableSubscription(t *testing.T) {
	s := New(1, nil)
	key := SubKey{Set: 1, Receiver: 1}
	s.StoreSubscribe(Subscription{Set: 1, Provider: 2, Receiver: 1, Active: false})
	s.EnableSubscription(key)

	subs := s.Subscriptions(1)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Active)
}

func TestReloadListenReplacesWholeTable(t *testing.T) {
	s := New(1, nil)
	s.ReloadListen([]ListenEntry{{Origin: 1, Provider: 1, Receiver: 2}})
	s.ReloadListen([]ListenEntry{{Origin: 1, Provider: 1, Receiver: 3}})
	got := s.Listen()
	require.Len(t, got, 1)
	assert.Equal(t, NodeID(3), got[0].Receiver)
}

func TestStoreListenUpdatesExistingEntry(t *testing.T) {
	s := New(1, nil)
	s.ReloadListen([]ListenEntry{{Origin: 1, Provider: 2, Receiver: 3}})
	s.StoreListen(ListenEntry{Origin: 1, Provider: 2, Receiver: 3})
	require.Len(t, s.Listen(), 1)

	s.StoreListen(ListenEntry{Origin: 4, Provider: 5, Receiver: 6})
	got := s.Listen()
	require.Len(t, got, 2)
}

func TestDropListenRemovesOneEntry(t *testing.T) {
	s := New(1, nil)
	s.ReloadListen([]ListenEntry{
		{Origin: 1, Provider: 2, Receiver: 3},
		{Origin: 4, Provider: 5, Receiver: 6},
	})
	s.DropListen(ListenEntry{Origin: 1, Provider: 2, Receiver: 3})
	got := s.Listen()
	require.Len(t, got, 1)
	assert.Equal(t, NodeID(4), got[0].Origin)
}
