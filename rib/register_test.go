package rib

import (
	"errors"
	"testing"
)

type recordingDispatcher struct {
	delivered []RegisterEvent
	failNext  bool
}

func (d *recordingDispatcher) DispatchRegisterEvent(subscriber string, ev RegisterEvent) error {
	if d.failNext {
		d.failNext = false
		return errors.New("temporarily unreachable")
	}
	d.delivered = append(d.delivered, ev)
	return nil
}

func TestRegisterTableRegisterInterestReturnsValidityRange(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))

	rr := rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	if !rr.Matched.Net.Contains(addr(t, "192.0.2.5")) {
		t.Fatalf("expected a matched route covering the queried address")
	}
}

func TestRegisterTableInvalidatesOverlappingRegistration(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	disp := &recordingDispatcher{}
	rt.SetDispatcher(disp)

	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))
	rt.Flush()

	if len(disp.delivered) != 1 || disp.delivered[0].Kind != Invalidate {
		t.Fatalf("expected exactly one Invalidate delivered, got %+v", disp.delivered)
	}
}

func TestRegisterTableDeliversChangedForInPlaceAttributeUpdate(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	disp := &recordingDispatcher{}
	rt.SetDispatcher(disp)

	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))
	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))

	// Same prefix, new metric: the matched route's own attributes
	// changed but nothing about which prefix answers for the address did.
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 2))
	rt.Flush()

	if len(disp.delivered) != 1 || disp.delivered[0].Kind != Changed {
		t.Fatalf("expected exactly one Changed delivered, got %+v", disp.delivered)
	}
	if disp.delivered[0].Route == nil || disp.delivered[0].Route.Metric != 2 {
		t.Fatalf("expected the Changed event to carry the new route, got %+v", disp.delivered[0].Route)
	}

	// The registration must survive a Changed delivery: a second in-place
	// update still produces a notification rather than silently dropping.
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 3))
	rt.Flush()
	if len(disp.delivered) != 2 || disp.delivered[1].Kind != Changed {
		t.Fatalf("expected a second Changed after the registration survived, got %+v", disp.delivered)
	}
}

func TestRegisterTableRegistrationIsOneShot(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	disp := &recordingDispatcher{}
	rt.SetDispatcher(disp)

	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))
	rt.AddRoute(mergeRoute(t, "198.51.100.0/24", 1, 1))
	rt.Flush()

	if len(disp.delivered) != 1 {
		t.Fatalf("expected only the first mutation to trigger a delivery once deregistered, got %d", len(disp.delivered))
	}
}

func TestRegisterTableDeregisterInterestRemovesRegistration(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	disp := &recordingDispatcher{}
	rt.SetDispatcher(disp)

	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	rt.DeregisterInterest("subA", addr(t, "192.0.2.5"))
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))
	rt.Flush()

	if len(disp.delivered) != 0 {
		t.Fatalf("expected no delivery after deregistering, got %d", len(disp.delivered))
	}
}

func TestRegisterTableQuiescesOnDispatchFailureAndRetries(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	disp := &recordingDispatcher{failNext: true}
	rt.SetDispatcher(disp)

	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))

	rt.Flush() // fails, quiesces
	if len(disp.delivered) != 0 {
		t.Fatalf("expected the failed dispatch to deliver nothing")
	}
	rt.Flush() // retries the same head item, now succeeds
	if len(disp.delivered) != 1 {
		t.Fatalf("expected the retried dispatch to succeed, got %d delivered", len(disp.delivered))
	}
}

func TestRegisterTableNilDispatcherQuiescesWithoutPanicking(t *testing.T) {
	rt := NewRegisterTable("Register", nil)
	rt.RegisterInterest("subA", addr(t, "192.0.2.5"))
	rt.AddRoute(mergeRoute(t, "192.0.2.0/24", 1, 1))
	rt.Flush()
}
