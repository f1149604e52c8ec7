package topology

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valkey-io/valkeycluster-go/proto"
)

// FromClusterSlots builds a Table from a decoded CLUSTER SLOTS reply. Each
// top-level array element is [start, end, [primary-host, primary-port, id],
// [replica-host, replica-port, id], ...], mirroring the teacher's
// doReload/NewSlotInfo parsing of the same reply.
func FromClusterSlots(reply *proto.Data) (*Table, error) {
	if reply.T != proto.T_Array {
		return nil, fmt.Errorf("topology: CLUSTER SLOTS reply is not an array")
	}
	t := NewTable()
	for _, entry := range reply.Array {
		if entry.T != proto.T_Array || len(entry.Array) < 3 {
			return nil, fmt.Errorf("topology: malformed CLUSTER SLOTS entry")
		}
		start, err := asInt(entry.Array[0])
		if err != nil {
			return nil, err
		}
		end, err := asInt(entry.Array[1])
		if err != nil {
			return nil, err
		}
		primary := entry.Array[2]
		if primary.T != proto.T_Array || len(primary.Array) < 2 {
			return nil, fmt.Errorf("topology: malformed CLUSTER SLOTS primary entry")
		}
		host := string(primary.Array[0].String)
		port, err := asInt(primary.Array[1])
		if err != nil {
			return nil, err
		}
		id := NewNodeID(host, port)
		for s := start; s <= end; s++ {
			t.SetSlot(uint16(s), id, host, port)
		}
		for _, replica := range entry.Array[3:] {
			if replica.T != proto.T_Array || len(replica.Array) < 2 {
				continue
			}
			rhost := string(replica.Array[0].String)
			rport, err := asInt(replica.Array[1])
			if err != nil {
				continue
			}
			rid := NewNodeID(rhost, rport)
			t.RegisterNode(&Node{ID: rid, Host: rhost, Port: rport, Role: RoleReplica, PrimaryID: id})
		}
	}
	return t, nil
}

func asInt(d *proto.Data) (int, error) {
	switch d.T {
	case proto.T_Integer:
		return int(d.Integer), nil
	case proto.T_Bulk, proto.T_SimpleString:
		return strconv.Atoi(string(d.String))
	default:
		return 0, fmt.Errorf("topology: expected integer-like reply, got tag %q", d.T)
	}
}

// AliveNodes parses a CLUSTER NODES bulk-string reply, returning the set of
// node addresses ("host:port") that are not flagged "fail" — the filter the
// teacher's doReload applies before deciding which replicas are eligible
// for READ_PREFER_SLAVE routing.
func AliveNodes(raw []byte) map[string]bool {
	alive := make(map[string]bool)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	for _, line := range lines {
		if line == "" {
			continue
		}
		// <id> <ip:port@bus-port> <flags> <primary-id-or-"-"> ...
		fields := strings.SplitN(line, " ", 4)
		if len(fields) < 3 {
			continue
		}
		addr := fields[1]
		if at := strings.IndexByte(addr, '@'); at != -1 {
			addr = addr[:at]
		}
		if !strings.Contains(fields[2], "fail") {
			alive[addr] = true
		}
	}
	return alive
}
