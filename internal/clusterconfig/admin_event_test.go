package clusterconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyAdminEventStoreNode(t *testing.T) {
	s := New(1, nil)
	ev := Event{Type: "STORE_NODE", Data: []string{"2", "t", "some comment"}}
	require.NoError(t, ApplyAdminEvent(s, ev))

	n, ok := s.Node(2)
	require.True(t, ok)
	assert.True(t, n.Active)
	assert.Equal(t, "some comment", n.Comment)
}

func TestApplyAdminEventDropNode(t *testing.T) {
	s := New(1, nil)
	s.StoreNode(Node{ID: 2})
	require.NoError(t, ApplyAdminEvent(s, Event{Type: "DROP_NODE", Data: []string{"2"}}))

	_, ok := s.Node(2)
	assert.False(t, ok)
}

func TestApplyAdminEventStorePath(t *testing.T) {
	s := New(1, nil)
	ev := Event{Type: "STORE_PATH", Data: []string{"2", "1", "host=foo", "15"}}
	require.NoError(t, ApplyAdminEvent(s, ev))

	p, ok := s.Path(2, 1)
	require.True(t, ok)
	assert.Equal(t, "host=foo", p.ConnInfo)
	assert.Equal(t, 15, p.ConnRetry)
}

func TestApplyAdminEventStoreAndDropListen(t *testing.T) {
	s := New(1, nil)
	storeEv := Event{Type: "STORE_LISTEN", Data: []string{"1", "2", "3"}}
	require.NoError(t, ApplyAdminEvent(s, storeEv))
	require.Len(t, s.Listen(), 1)

	dropEv := Event{Type: "DROP_LISTEN", Data: []string{"1", "2", "3"}}
	require.NoError(t, ApplyAdminEvent(s, dropEv))
	assert.Len(t, s.Listen(), 0)
}

func TestApplyAdminEventStoreSubscribeAndEnable(t *testing.T) {
	s := New(1, nil)
	sub := Event{Type: "STORE_SUBSCRIBE", Data: []string{"1", "2", "1", "t"}}
	require.NoError(t, ApplyAdminEvent(s, sub))

	subs := s.Subscriptions(1)
	require.Len(t, subs, 1)
	assert.False(t, subs[0].Active)

	enable := Event{Type: "ENABLE_SUBSCRIPTION", Data: []string{"1", "1"}}
	require.NoError(t, ApplyAdminEvent(s, enable))
	assert.True(t, s.Subscriptions(1)[0].Active)
}

func TestApplyAdminEventFailoverAndMoveSet(t *testing.T) {
	s := New(1, nil)
	s.StoreSet(Set{ID: 1, Origin: 2})

	require.NoError(t, ApplyAdminEvent(s, Event{Type: "FAILOVER_SET", Data: []string{"1", "3"}}))
	require.NoError(t, ApplyAdminEvent(s, Event{Type: "MOVE_SET", Data: []string{"1", "4"}}))
}

func TestApplyAdminEventSwitchLogIsNoOp(t *testing.T) {
	s := New(1, nil)
	assert.NoError(t, ApplyAdminEvent(s, Event{Type: "SWITCH_LOG"}))
}

func TestApplyAdminEventUnknownType(t *testing.T) {
	s := New(1, nil)
	err := ApplyAdminEvent(s, Event{Type: "NOT_A_REAL_EVENT"})
	require.Error(t, err)
}

func TestApplyAdminEventMissingFieldErrors(t *testing.T) {
	s := New(1, nil)
	err := ApplyAdminEvent(s, Event{Type: "STORE_NODE", Data: []string{}})
	require.Error(t, err)
}
