package topology

import "testing"

func TestSetSlotAndPrimaryFor(t *testing.T) {
	tbl := NewTable()
	if !tbl.Unassigned(0) {
		t.Fatalf("expected slot 0 unassigned initially")
	}
	tbl.SetSlot(0, NewNodeID("10.0.0.1", 6379), "10.0.0.1", 6379)
	if tbl.Unassigned(0) {
		t.Fatalf("expected slot 0 assigned")
	}
	if got := tbl.PrimaryFor(0); got != NewNodeID("10.0.0.1", 6379) {
		t.Fatalf("unexpected primary: %s", got)
	}
}

func TestClonePreservesSlotsIndependently(t *testing.T) {
	tbl := NewTable()
	tbl.SetSlot(5, NewNodeID("a", 1), "a", 1)
	clone := tbl.Clone()
	clone.SetSlot(5, NewNodeID("b", 2), "b", 2)
	if tbl.PrimaryFor(5) == clone.PrimaryFor(5) {
		t.Fatalf("expected clone mutation not to affect original table")
	}
}

func TestAliveNodesFiltersFailed(t *testing.T) {
	raw := []byte(
		"305fa52a4ed213df3ca97a4399d9e2a6e44371d2 10.4.17.164:7704@17704 master - 0 1440042315188 2 connected 5461-10922\n" +
			"abcabcabcabcabcabcabcabcabcabcabcabcabca 10.4.17.165:7705@17705 master,fail - 0 1440042315188 3 connected 10923-16383\n")
	alive := AliveNodes(raw)
	if !alive["10.4.17.164:7704"] {
		t.Fatalf("expected 10.4.17.164:7704 to be alive")
	}
	if alive["10.4.17.165:7705"] {
		t.Fatalf("expected 10.4.17.165:7705 to be filtered out as failed")
	}
}
