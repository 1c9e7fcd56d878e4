package clusterconfig

// NodeID identifies one node (origin or subscriber) in a cluster.
type NodeID int32

// Node mirrors sl_node.
type Node struct {
	ID      NodeID
	Active  bool
	Comment string
}

// PathKey identifies a directional connection path between two nodes.
type PathKey struct {
	Server NodeID
	Client NodeID
}

// Path mirrors sl_path: how the client node reaches the server node.
type Path struct {
	Server    NodeID
	Client    NodeID
	ConnInfo  string
	ConnRetry int // seconds between reconnect attempts, pa_connretry
}

// ListenEntry mirrors sl_listen: receiver listens to provider for
// events originated at origin.
type ListenEntry struct {
	Origin   NodeID
	Provider NodeID
	Receiver NodeID
}

// SetID identifies a replication set.
type SetID int32

// Set mirrors sl_set.
type Set struct {
	ID      SetID
	Origin  NodeID
	Comment string
}

// SubKey identifies one subscription of a receiver to a set.
type SubKey struct {
	Set      SetID
	Receiver NodeID
}

// Subscription mirrors sl_subscribe.
type Subscription struct {
	Set      SetID
	Provider NodeID
	Receiver NodeID
	Forward  bool
	Active   bool
}

// Event mirrors one sl_event row: an admin or SYNC event originated at
// Origin, numbered Seqno in that origin's strictly monotonic sequence.
type Event struct {
	Origin    NodeID
	Seqno     int64
	Type      string
	Timestamp int64 // unix nanos
	Xmin      int64
	Xmax      int64
	Xip       []int64
	Data      []string
}

// IsSync reports whether the event is a SYNC event, which may be
// grouped with adjacent SYNC events, versus an admin event, which must
// be applied alone and in order.
func (e Event) IsSync() bool { return e.Type == "SYNC" }

// LogRow mirrors one sl_log_1/sl_log_2 row captured for a replicated
// change.
type LogRow struct {
	Origin      NodeID
	Xid         int64
	TableID     int32
	ActionSeq   int64
	CmdType     byte
	CmdData     string
	PartitionID int // 1 or 2, which of sl_log_1/sl_log_2 this came from
}

// Confirm mirrors sl_confirm: the high-watermark seqno Receiver has
// durably applied from Origin.
type Confirm struct {
	Origin   NodeID
	Receiver NodeID
	Seqno    int64
}

// SequenceSnapshot mirrors one sl_seqlog row.
type SequenceSnapshot struct {
	SeqID     int32
	Origin    NodeID
	EventSeqno int64
	LastValue int64
}
