package clusterconfig

import (
	"strconv"

	"github.com/pkg/errors"
)

// ApplyAdminEvent decodes one non-SYNC event's positional Data payload
// and applies it to store via the matching mutator. Every worker and
// the local listener route through this single dispatch path rather
// than each re-deriving the decode themselves.
//
// Data layout is event-type specific, fields 0-indexed:
//
//	STORE_NODE           id, active(t/f), comment
//	DROP_NODE            id
//	STORE_PATH           server, client, conninfo, connretry
//	DROP_PATH            server, client
//	STORE_LISTEN         origin, provider, receiver
//	DROP_LISTEN          origin, provider, receiver
//	STORE_SET            id, origin, comment
//	STORE_SUBSCRIBE      set, provider, receiver, forward(t/f)
//	DROP_SUBSCRIBE       set, receiver
//	ENABLE_SUBSCRIPTION  set, receiver
//	FAILOVER_SET         set, newOrigin
//	MOVE_SET             set, newOrigin
//	SWITCH_LOG           (no payload; accepted with no runtime-config effect)
func ApplyAdminEvent(store *Store, ev Event) error {
	d := ev.Data
	switch ev.Type {
	case "STORE_NODE":
		id, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_NODE")
		}
		active, err := fieldBool(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_NODE")
		}
		store.StoreNode(Node{ID: NodeID(id), Active: active, Comment: field(d, 2)})
		return nil

	case "DROP_NODE":
		id, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_NODE")
		}
		store.DropNode(NodeID(id))
		return nil

	case "STORE_PATH":
		server, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_PATH")
		}
		client, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_PATH")
		}
		retry, err := fieldInt(d, 3)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_PATH")
		}
		store.StorePath(Path{Server: NodeID(server), Client: NodeID(client), ConnInfo: field(d, 2), ConnRetry: retry})
		return nil

	case "DROP_PATH":
		server, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_PATH")
		}
		client, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_PATH")
		}
		store.DropPath(PathKey{Server: NodeID(server), Client: NodeID(client)})
		return nil

	case "STORE_LISTEN":
		le, err := decodeListenEntry(d)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_LISTEN")
		}
		store.StoreListen(le)
		return nil

	case "DROP_LISTEN":
		le, err := decodeListenEntry(d)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_LISTEN")
		}
		store.DropListen(le)
		return nil

	case "STORE_SET":
		id, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SET")
		}
		origin, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SET")
		}
		store.StoreSet(Set{ID: SetID(id), Origin: NodeID(origin), Comment: field(d, 2)})
		return nil

	case "STORE_SUBSCRIBE":
		set, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SUBSCRIBE")
		}
		provider, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SUBSCRIBE")
		}
		receiver, err := field32(d, 2)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SUBSCRIBE")
		}
		forward, err := fieldBool(d, 3)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: STORE_SUBSCRIBE")
		}
		store.StoreSubscribe(Subscription{Set: SetID(set), Provider: NodeID(provider), Receiver: NodeID(receiver), Forward: forward})
		return nil

	case "DROP_SUBSCRIBE":
		set, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_SUBSCRIBE")
		}
		receiver, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: DROP_SUBSCRIBE")
		}
		store.DropSubscribe(SubKey{Set: SetID(set), Receiver: NodeID(receiver)})
		return nil

	case "ENABLE_SUBSCRIPTION":
		set, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: ENABLE_SUBSCRIPTION")
		}
		receiver, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: ENABLE_SUBSCRIPTION")
		}
		store.EnableSubscription(SubKey{Set: SetID(set), Receiver: NodeID(receiver)})
		return nil

	case "FAILOVER_SET":
		set, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: FAILOVER_SET")
		}
		newOrigin, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: FAILOVER_SET")
		}
		store.FailoverSet(SetID(set), NodeID(newOrigin))
		return nil

	case "MOVE_SET":
		set, err := field32(d, 0)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: MOVE_SET")
		}
		newOrigin, err := field32(d, 1)
		if err != nil {
			return errors.Wrap(err, "clusterconfig: MOVE_SET")
		}
		store.MoveSet(SetID(set), NodeID(newOrigin))
		return nil

	case "SWITCH_LOG":
		return nil

	default:
		return errors.Errorf("clusterconfig: unknown admin event type %q", ev.Type)
	}
}

func decodeListenEntry(d []string) (ListenEntry, error) {
	origin, err := field32(d, 0)
	if err != nil {
		return ListenEntry{}, err
	}
	provider, err := field32(d, 1)
	if err != nil {
		return ListenEntry{}, err
	}
	receiver, err := field32(d, 2)
	if err != nil {
		return ListenEntry{}, err
	}
	return ListenEntry{Origin: NodeID(origin), Provider: NodeID(provider), Receiver: NodeID(receiver)}, nil
}

func field(d []string, i int) string {
	if i < len(d) {
		return d[i]
	}
	return ""
}

func fieldInt(d []string, i int) (int, error) {
	v, err := fieldInt64(d, i)
	return int(v), err
}

func field32(d []string, i int) (int32, error) {
	v, err := fieldInt64(d, i)
	return int32(v), err
}

func fieldInt64(d []string, i int) (int64, error) {
	if i >= len(d) {
		return 0, errors.Errorf("missing field %d", i)
	}
	return strconv.ParseInt(d[i], 10, 64)
}

func fieldBool(d []string, i int) (bool, error) {
	if i >= len(d) {
		return false, errors.Errorf("missing field %d", i)
	}
	return d[i] == "t", nil
}
