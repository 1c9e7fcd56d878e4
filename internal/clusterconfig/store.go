// Package clusterconfig holds the in-memory runtime configuration of a
// running replication daemon: the node/path/set/subscription/listen
// tables loaded at startup and kept current by admin events applied in
// seqno order. It mirrors slon.c's rtcfg_* family: mutators are
// idempotent, re-storing identical fields is a no-op, and changed
// fields supersede while signalling anything depending on them.
package clusterconfig

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// ChangeNotifier is invoked after a mutation that should wake up
// dependent goroutines (a remote worker for the affected node, the sync
// generator, etc). It replaces slon.c's sched_wakeup_node call sites.
type ChangeNotifier func(affected NodeID)

// Store is the single coarse-grained configuration lock described by
// the daemon: every mutator takes Store.mu, the same granularity as
// slon.c's single rtcfg struct guarded implicitly by running on the
// main thread before handing off to workers.
type Store struct {
	mu sync.Mutex

	LocalNodeID NodeID

	nodes  map[NodeID]*Node
	paths  map[PathKey]*Path
	listen []ListenEntry
	sets   map[SetID]*Set
	subs   map[SubKey]*Subscription

	lastEvent map[NodeID]int64

	notify ChangeNotifier
}

// New returns an empty Store for localNode, notifying changes via notify
// (which may be nil in tests).
func New(localNode NodeID, notify ChangeNotifier) *Store {
	if notify == nil {
		notify = func(NodeID) {}
	}
	return &Store{
		LocalNodeID: localNode,
		nodes:       make(map[NodeID]*Node),
		paths:       make(map[PathKey]*Path),
		sets:        make(map[SetID]*Set),
		subs:        make(map[SubKey]*Subscription),
		lastEvent:   make(map[NodeID]int64),
		notify:      notify,
	}
}

// StoreNode inserts or updates a node. A call that changes nothing is a
// no-op and does not notify, mirroring rtcfg_storeNode's idempotence.
func (s *Store) StoreNode(n Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.nodes[n.ID]; ok && *existing == n {
		return
	}
	cp := n
	s.nodes[n.ID] = &cp
	s.notify(n.ID)
	logrus.WithField("node", n.ID).Debug("clusterconfig: stored node")
}

// DropNode removes a node and everything that references it.
func (s *Store) DropNode(id NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	delete(s.lastEvent, id)
	for k := range s.paths {
		if k.Server == id || k.Client == id {
			delete(s.paths, k)
		}
	}
	s.notify(id)
	logrus.WithField("node", id).Info("clusterconfig: dropped node")
}

// Node returns a copy of the node record, if known.
func (s *Store) Node(id NodeID) (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns a snapshot of every known node.
func (s *Store) Nodes() []Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, *n)
	}
	return out
}

// StorePath inserts or updates the connection path used to reach
// p.Server from p.Client.
func (s *Store) StorePath(p Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := PathKey{Server: p.Server, Client: p.Client}
	if existing, ok := s.paths[key]; ok && *existing == p {
		return
	}
	cp := p
	s.paths[key] = &cp
	s.notify(p.Client)
}

// DropPath removes one path.
func (s *Store) DropPath(key PathKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.paths[key]; !ok {
		return
	}
	delete(s.paths, key)
	s.notify(key.Client)
}

// Path looks up how to reach server from the local client's perspective.
func (s *Store) Path(server, client NodeID) (Path, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.paths[PathKey{Server: server, Client: client}]
	if !ok {
		return Path{}, false
	}
	return *p, true
}

// StoreSet inserts or updates a replication set.
func (s *Store) StoreSet(set Set) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sets[set.ID]; ok && *existing == set {
		return
	}
	cp := set
	s.sets[set.ID] = &cp
	s.notify(set.Origin)
}

// StoreSubscribe inserts or updates a subscription. Newly stored
// subscriptions are inactive until EnableSubscription is called,
// mirroring rtcfg_storeSubscribe/rtcfg_enableSubscription's split.
func (s *Store) StoreSubscribe(sub Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := SubKey{Set: sub.Set, Receiver: sub.Receiver}
	if existing, ok := s.subs[key]; ok && *existing == sub {
		return
	}
	cp := sub
	s.subs[key] = &cp
	s.notify(sub.Receiver)
}

// EnableSubscription marks a subscription active, allowing its worker
// to begin processing SYNC groups for that set.
func (s *Store) EnableSubscription(key SubKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[key]
	if !ok || sub.Active {
		return
	}
	sub.Active = true
	s.notify(key.Receiver)
}

// DropSubscribe removes a subscription.
func (s *Store) DropSubscribe(key SubKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[key]; !ok {
		return
	}
	delete(s.subs, key)
	s.notify(key.Receiver)
}

// Subscriptions returns every subscription whose Receiver is the local
// node, matching slon.c's startup query filtered by sub_receiver=local.
func (s *Store) Subscriptions(receiver NodeID) []Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Subscription
	for _, sub := range s.subs {
		if sub.Receiver == receiver {
			out = append(out, *sub)
		}
	}
	return out
}

// ReloadListen replaces the entire sl_listen view used for the local
// node, matching rtcfg_reloadListen's full-table-rebuild semantics
// (listen entries aren't incrementally diffed).
func (s *Store) ReloadListen(entries []ListenEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listen = append([]ListenEntry(nil), entries...)
	s.notify(s.LocalNodeID)
}

// StoreListen inserts or updates one listen-table entry, the
// incremental counterpart to ReloadListen's full-table replace, used
// when a STORE_LISTEN admin event arrives for a single (origin,
// provider, receiver) triple.
func (s *Store) StoreListen(e ListenEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listen {
		if existing.Origin == e.Origin && existing.Provider == e.Provider && existing.Receiver == e.Receiver {
			if existing == e {
				return
			}
			s.listen[i] = e
			s.notify(s.LocalNodeID)
			return
		}
	}
	s.listen = append(s.listen, e)
	s.notify(s.LocalNodeID)
}

// DropListen removes one listen-table entry.
func (s *Store) DropListen(e ListenEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.listen {
		if existing.Origin == e.Origin && existing.Provider == e.Provider && existing.Receiver == e.Receiver {
			s.listen = append(s.listen[:i], s.listen[i+1:]...)
			s.notify(s.LocalNodeID)
			return
		}
	}
}

// Listen returns the current listen table.
func (s *Store) Listen() []ListenEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ListenEntry(nil), s.listen...)
}

// LastEvent returns the last seqno processed from origin.
func (s *Store) LastEvent(origin NodeID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent[origin]
}

// SetLastEvent records the last seqno processed from origin, refusing
// to go backwards (confirmations and processed-event watermarks are
// monotonic per spec).
func (s *Store) SetLastEvent(origin NodeID, seqno int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seqno <= s.lastEvent[origin] {
		return
	}
	s.lastEvent[origin] = seqno
}

// FailoverSet reassigns a set's origin, the runtime-config side effect
// of a FAILOVER_SET admin event.
func (s *Store) FailoverSet(id SetID, newOrigin NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[id]
	if !ok {
		return
	}
	set.Origin = newOrigin
	s.notify(newOrigin)
}

// MoveSet reassigns a set's origin as part of a planned MOVE_SET
// switchover (distinct admin event from FAILOVER_SET but identical
// config-store effect).
func (s *Store) MoveSet(id SetID, newOrigin NodeID) {
	s.FailoverSet(id, newOrigin)
}
