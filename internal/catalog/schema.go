// Package catalog owns the replication schema's DDL and the version
// handshake a worker performs against it before joining a cluster.
package catalog

import (
	"fmt"

	"github.com/slonyx/slon/internal/quote"
)

// Version is the schema/module version this binary expects, mirroring
// SLONY_I_VERSION_STRING.
const Version = "3.0.0-slonyx"

// Schema returns the PostgreSQL schema namespace a cluster's catalog
// objects live in, matching slon.c's convention of a leading underscore
// before the quoted cluster name.
func Schema(cluster string) string {
	return "_" + cluster
}

// DDL renders the full set of catalog objects for the given schema
// namespace. It is intentionally a single literal template, the way the
// original SQL installation script is a single file applied once per
// cluster — there is no migration framework in scope here.
func DDL(schema string) string {
	return fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %[1]s;

CREATE TABLE %[1]s.sl_node (
	no_id      integer PRIMARY KEY,
	no_active  boolean NOT NULL DEFAULT false,
	no_comment text
);

CREATE TABLE %[1]s.sl_path (
	pa_server  integer NOT NULL,
	pa_client  integer NOT NULL,
	pa_conninfo text NOT NULL,
	pa_connretry integer NOT NULL DEFAULT 10,
	PRIMARY KEY (pa_server, pa_client)
);

CREATE TABLE %[1]s.sl_listen (
	li_origin   integer NOT NULL,
	li_provider integer NOT NULL,
	li_receiver integer NOT NULL,
	PRIMARY KEY (li_origin, li_provider, li_receiver)
);

CREATE TABLE %[1]s.sl_set (
	set_id     integer PRIMARY KEY,
	set_origin integer NOT NULL,
	set_comment text
);

CREATE TABLE %[1]s.sl_subscribe (
	sub_set      integer NOT NULL,
	sub_provider integer NOT NULL,
	sub_receiver integer NOT NULL,
	sub_forward  boolean NOT NULL DEFAULT false,
	sub_active   boolean NOT NULL DEFAULT false,
	PRIMARY KEY (sub_set, sub_receiver)
);

CREATE SEQUENCE %[1]s.sl_event_seq;
CREATE SEQUENCE %[1]s.sl_action_seq;
CREATE SEQUENCE %[1]s.sl_local_node_id;

CREATE TABLE %[1]s.sl_event (
	ev_origin    integer NOT NULL,
	ev_seqno     bigint NOT NULL,
	ev_timestamp timestamptz NOT NULL DEFAULT now(),
	ev_minxid    bigint,
	ev_maxxid    bigint,
	ev_xip       text,
	ev_type      text NOT NULL,
	ev_data1 text, ev_data2 text, ev_data3 text, ev_data4 text,
	ev_data5 text, ev_data6 text, ev_data7 text, ev_data8 text, ev_data9 text,
	PRIMARY KEY (ev_origin, ev_seqno)
);

CREATE TABLE %[1]s.sl_confirm (
	con_origin   integer NOT NULL,
	con_received integer NOT NULL,
	con_seqno    bigint NOT NULL,
	con_timestamp timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (con_origin, con_received)
);

CREATE TABLE %[1]s.sl_seqlog (
	seql_seqid       integer NOT NULL,
	seql_origin      integer NOT NULL,
	seql_ev_seqno    bigint NOT NULL,
	seql_last_value  bigint NOT NULL,
	PRIMARY KEY (seql_seqid, seql_origin, seql_ev_seqno)
);

CREATE TABLE %[1]s.sl_log_1 (
	log_origin    integer NOT NULL,
	log_xid       bigint NOT NULL,
	log_tableid   integer NOT NULL,
	log_actionseq bigint NOT NULL DEFAULT nextval('%[1]s.sl_action_seq'),
	log_cmdtype   "char" NOT NULL,
	log_cmddata   text NOT NULL
);
CREATE INDEX sl_log_1_idx ON %[1]s.sl_log_1 (log_origin, log_actionseq);

CREATE TABLE %[1]s.sl_log_2 (LIKE %[1]s.sl_log_1 INCLUDING ALL);

CREATE TABLE %[1]s.sl_table (
	tab_id      integer PRIMARY KEY,
	tab_set     integer NOT NULL,
	tab_relname text NOT NULL,
	tab_nspname text NOT NULL,
	tab_idxname text
);

CREATE TABLE %[1]s.sl_registry (
	reg_key  text PRIMARY KEY,
	reg_value text
);
INSERT INTO %[1]s.sl_registry (reg_key, reg_value) VALUES ('schema_version', %[2]s);
`, schema, quote.Literal(Version))
}
