package routing

import (
	"errors"
	"net/netip"
	"testing"
)

// fakeWriter is an in-memory tableWriter double for exercising the
// store's transactional logic without a real Windows host.
type fakeWriter struct {
	table map[RegisteredRoute]bool

	failCreateFor map[RegisteredRoute]bool
	existsFor     map[RegisteredRoute]bool
	failSetFor    map[RegisteredRoute]bool
	failDeleteFor map[RegisteredRoute]bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{table: make(map[RegisteredRoute]bool)}
}

func (w *fakeWriter) create(entry RegisteredRoute) (bool, error) {
	if w.failCreateFor[entry] {
		return false, errors.New("injected create failure")
	}
	if w.existsFor[entry] {
		return true, nil
	}
	w.table[entry] = true
	return false, nil
}

func (w *fakeWriter) set(entry RegisteredRoute) error {
	if w.failSetFor[entry] {
		return errors.New("injected set failure")
	}
	w.table[entry] = true
	return nil
}

func (w *fakeWriter) delete(entry RegisteredRoute) (bool, error) {
	if w.failDeleteFor[entry] {
		return false, errors.New("injected delete failure")
	}
	if !w.table[entry] {
		return true, nil
	}
	delete(w.table, entry)
	return false, nil
}

// fakeResolver resolves every NodeSpec to a fixed interface/gateway pair
// keyed by family, regardless of node kind — sufficient to exercise the
// store's batch/rollback/rebind logic, which doesn't care how resolution
// happened.
type fakeResolver struct {
	byFamily map[AddressFamily]struct {
		ifID InterfaceId
		gw   netip.Addr
	}
	err error
}

func (r *fakeResolver) resolve(family AddressFamily, _ NodeSpec) (InterfaceId, Gateway, error) {
	if r.err != nil {
		return 0, netip.Addr{}, r.err
	}
	v := r.byFamily[family]
	return v.ifID, v.gw, nil
}

func simpleResolver(ifID InterfaceId, gw string) *fakeResolver {
	r := &fakeResolver{byFamily: map[AddressFamily]struct {
		ifID InterfaceId
		gw   netip.Addr
	}{}}
	r.byFamily[FamilyV4] = struct {
		ifID InterfaceId
		gw   netip.Addr
	}{ifID, netip.MustParseAddr(gw)}
	return r
}

func defaultSpec() RouteSpec {
	return RouteSpec{
		Prefix: Prefix{Addr: netip.IPv4Unspecified(), Bits: 0, Family: FamilyV4},
		Node:   DefaultNode(),
	}
}

func TestStoreApplyFreshRoute(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)

	if err := s.Apply([]RouteSpec{defaultSpec()}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	records := s.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	want := RegisteredRoute{Prefix: defaultSpec().Prefix, InterfaceId: 17, NextHop: netip.MustParseAddr("10.0.0.1")}
	if !records[0].Concrete.Equal(want) {
		t.Errorf("got %+v, want %+v", records[0].Concrete, want)
	}
	if !w.table[want] {
		t.Error("expected table to contain the written entry")
	}
}

func TestStoreApplyRollsBackOnFailure(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)

	good1 := RouteSpec{Prefix: Prefix{Addr: netip.IPv4Unspecified(), Bits: 0, Family: FamilyV4}, Node: NamedNode("eth0")}
	good2 := RouteSpec{Prefix: Prefix{Addr: netip.MustParseAddr("192.168.1.0"), Bits: 24, Family: FamilyV4}, Node: NamedNode("eth0")}

	// Force the third spec's write to fail.
	bad := RouteSpec{Prefix: Prefix{Addr: netip.MustParseAddr("172.16.0.0"), Bits: 16, Family: FamilyV4}, Node: NamedNode("eth0")}
	badEntry := RegisteredRoute{Prefix: bad.Prefix, InterfaceId: 17, NextHop: netip.MustParseAddr("10.0.0.1")}
	w.failCreateFor = map[RegisteredRoute]bool{badEntry: true}

	err := s.Apply([]RouteSpec{good1, good2, bad})
	if err == nil {
		t.Fatal("expected Apply to fail on the third spec")
	}
	var re *RouteError
	if !errors.As(err, &re) || re.Kind != WriteFailed {
		t.Errorf("expected WriteFailed, got %v", err)
	}

	if len(s.Records()) != 0 {
		t.Errorf("store must be empty after rollback, got %d records", len(s.Records()))
	}
	if len(w.table) != 0 {
		t.Errorf("table must contain none of the batch's entries after rollback, got %d", len(w.table))
	}
}

func TestStoreApplyOverwritesOnAlreadyExists(t *testing.T) {
	w := newFakeWriter()
	spec := defaultSpec()
	r := simpleResolver(17, "10.0.0.1")
	existing := RegisteredRoute{Prefix: spec.Prefix, InterfaceId: 17, NextHop: netip.MustParseAddr("10.0.0.1")}
	w.existsFor = map[RegisteredRoute]bool{existing: true}

	s := newStore(w, r)
	if err := s.Apply([]RouteSpec{spec}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if !w.table[existing] {
		t.Error("expected overwrite via set to leave the entry present")
	}
	if len(s.Records()) != 1 {
		t.Errorf("expected 1 record after overwrite, got %d", len(s.Records()))
	}
}

func TestStoreClearEmptiesStoreAndTable(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)
	if err := s.Apply([]RouteSpec{defaultSpec()}); err != nil {
		t.Fatal(err)
	}

	s.Clear()

	if len(s.Records()) != 0 {
		t.Error("expected 0 records after Clear")
	}
	if len(w.table) != 0 {
		t.Error("expected table empty after Clear")
	}
}

func TestStoreClearToleratesAlreadyMissingEntry(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)
	if err := s.Apply([]RouteSpec{defaultSpec()}); err != nil {
		t.Fatal(err)
	}
	// Simulate the OS having already removed the entry out-of-band.
	for k := range w.table {
		delete(w.table, k)
	}

	s.Clear() // must not panic or error despite "not found" on delete
	if len(s.Records()) != 0 {
		t.Error("expected 0 records after Clear even when the table entry was already gone")
	}
}

func TestStoreRebindUpdatesDefaultRecords(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)
	if err := s.Apply([]RouteSpec{defaultSpec()}); err != nil {
		t.Fatal(err)
	}

	s.Rebind(FamilyV4, BestDefault{InterfaceId: 42, Gateway: netip.MustParseAddr("10.0.1.1")})

	records := s.Records()
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	want := RegisteredRoute{Prefix: defaultSpec().Prefix, InterfaceId: 42, NextHop: netip.MustParseAddr("10.0.1.1")}
	if !records[0].Concrete.Equal(want) {
		t.Errorf("got %+v, want %+v", records[0].Concrete, want)
	}
	if !w.table[want] {
		t.Error("expected new entry present in table")
	}
	old := RegisteredRoute{Prefix: defaultSpec().Prefix, InterfaceId: 17, NextHop: netip.MustParseAddr("10.0.0.1")}
	if w.table[old] {
		t.Error("expected old entry removed from table")
	}
}

func TestStoreRebindIgnoresNonDefaultRecords(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)
	named := RouteSpec{Prefix: Prefix{Addr: netip.IPv4Unspecified(), Bits: 0, Family: FamilyV4}, Node: NamedNode("eth0")}
	if err := s.Apply([]RouteSpec{named}); err != nil {
		t.Fatal(err)
	}

	s.Rebind(FamilyV4, BestDefault{InterfaceId: 99, Gateway: netip.MustParseAddr("10.9.9.9")})

	records := s.Records()
	if records[0].Concrete.InterfaceId != 17 {
		t.Error("rebind must not touch records whose NodeSpec is not Default")
	}
}

func TestStoreRemoveRoundTrip(t *testing.T) {
	w := newFakeWriter()
	r := simpleResolver(17, "10.0.0.1")
	s := newStore(w, r)
	spec := defaultSpec()
	if err := s.Apply([]RouteSpec{spec}); err != nil {
		t.Fatal(err)
	}

	if err := s.Remove([]RouteSpec{spec}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if len(s.Records()) != 0 {
		t.Error("expected record removed")
	}
	if len(w.table) != 0 {
		t.Error("expected table entry removed")
	}
}
