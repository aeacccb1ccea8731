package rib

import "testing"

func mergeRoute(t *testing.T, net string, admin uint8, metric uint32) *RouteEntry {
	t.Helper()
	return &RouteEntry{
		Net:            pfx(t, net),
		NextHop:        &NextHop{Kind: NextHopPeer, Addr: addr(t, "192.0.2.1")},
		Vif:            testVif(t, "192.0.2.1"),
		AdminDistance:  admin,
		Metric:         metric,
		ProtocolOrigin: ProtocolOrigin{Name: "test"},
	}
}

func TestMergedTableLowerAdminDistanceWins(t *testing.T) {
	mt := NewMergedTable("Merged:test")
	next := newRecordingTable("next")
	mt.SetNext(next)

	left, right := mt.LeftInput(), mt.RightInput()
	left.AddRoute(mergeRoute(t, "192.0.2.0/24", 110, 10))
	right.AddRoute(mergeRoute(t, "192.0.2.0/24", 20, 999))

	if len(next.added) != 1 {
		t.Fatalf("expected an add then a replace, got %d adds", len(next.added))
	}
	if len(next.replaced) != 1 {
		t.Fatalf("expected 1 replace event, got %d", len(next.replaced))
	}
	winner := next.replaced[0][1]
	if winner.AdminDistance != 20 {
		t.Fatalf("winner has admin distance %d, want 20 (lower wins)", winner.AdminDistance)
	}
}

func TestMergedTableTieBreaksOnMetricThenStability(t *testing.T) {
	mt := NewMergedTable("Merged:test")
	next := newRecordingTable("next")
	mt.SetNext(next)

	left, right := mt.LeftInput(), mt.RightInput()
	left.AddRoute(mergeRoute(t, "192.0.2.0/24", 110, 10))
	right.AddRoute(mergeRoute(t, "192.0.2.0/24", 110, 10))

	// Equal admin distance and metric: incumbent (left, already winning)
	// should be kept rather than flapping to the new arrival.
	if len(next.replaced) != 0 {
		t.Fatalf("expected no replace on an exact tie, got %d", len(next.replaced))
	}
}

func TestMergedTableWithdrawOneSideFallsBackToOther(t *testing.T) {
	mt := NewMergedTable("Merged:test")
	next := newRecordingTable("next")
	mt.SetNext(next)

	left, right := mt.LeftInput(), mt.RightInput()
	left.AddRoute(mergeRoute(t, "192.0.2.0/24", 20, 10))
	right.AddRoute(mergeRoute(t, "192.0.2.0/24", 110, 10))

	left.DeleteRoute(pfx(t, "192.0.2.0/24"))
	if len(next.replaced) != 1 {
		t.Fatalf("expected fallback to the remaining side as a replace, got %d", len(next.replaced))
	}
	if next.replaced[0][1].AdminDistance != 110 {
		t.Fatalf("expected fallback winner from right side")
	}
}

func TestMergedTableWithdrawBothSidesDeletesDownstream(t *testing.T) {
	mt := NewMergedTable("Merged:test")
	next := newRecordingTable("next")
	mt.SetNext(next)

	left, right := mt.LeftInput(), mt.RightInput()
	left.AddRoute(mergeRoute(t, "192.0.2.0/24", 20, 10))
	right.DeleteRoute(pfx(t, "192.0.2.0/24"))
	left.DeleteRoute(pfx(t, "192.0.2.0/24"))

	if len(next.deleted) != 1 {
		t.Fatalf("expected 1 downstream delete once both sides withdraw, got %d", len(next.deleted))
	}
}

func TestMergedTableDirectCallsRejected(t *testing.T) {
	mt := NewMergedTable("Merged:test")
	if code := mt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1)); code != CommandFailed {
		t.Fatalf("direct AddRoute on a MergedTable should fail, got %v", code)
	}
}
