package routing

import "sync"

// tableWriter is the OS forwarding-table write surface the store needs.
// Implemented against real iphlpapi calls in store_windows.go; faked in
// tests so the transactional/rollback logic below is testable without a
// real Windows host.
type tableWriter interface {
	// create adds entry to the table. alreadyExists reports the
	// ERROR_OBJECT_ALREADY_EXISTS case, which the caller turns into an
	// overwrite via set rather than a failure.
	create(entry RegisteredRoute) (alreadyExists bool, err error)
	set(entry RegisteredRoute) error
	// delete removes entry. notFound reports the "not found" case, which
	// the caller demotes to a warning rather than a failure.
	delete(entry RegisteredRoute) (notFound bool, err error)
}

// nodeResolver resolves a NodeSpec to a concrete interface/gateway pair,
// per §4.6.1. Implemented against real OS calls in store_windows.go.
type nodeResolver interface {
	resolve(family AddressFamily, node NodeSpec) (InterfaceId, Gateway, error)
}

type undoKind int

const (
	undoAdd undoKind = iota
	undoDelete
)

type undoEntry struct {
	kind     undoKind
	concrete RegisteredRoute
	record   RouteRecord // only meaningful for undoDelete
}

// Store is the managed-route store (C6): the ordered list of routes this
// manager has written, plus the machinery to apply/remove them
// transactionally and re-bind Default-node records when the best default
// changes.
type Store struct {
	mu       sync.Mutex
	records  []RouteRecord
	writer   tableWriter
	resolver nodeResolver

	// onWarn/onError are optional diagnostic hooks wired to the shared
	// logger by the façade; nil is a silent no-op, used by tests.
	onWarn  func(format string, args ...any)
	onError func(format string, args ...any)
}

func newStore(writer tableWriter, resolver nodeResolver) *Store {
	return &Store{writer: writer, resolver: resolver}
}

func (s *Store) warnf(format string, args ...any) {
	if s.onWarn != nil {
		s.onWarn(format, args...)
	}
}

func (s *Store) errorf(format string, args ...any) {
	if s.onError != nil {
		s.onError(format, args...)
	}
}

// Records returns a snapshot copy of the current managed routes.
func (s *Store) Records() []RouteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RouteRecord, len(s.records))
	copy(out, s.records)
	return out
}

// writeEntry implements §4.6.1 resolve + §4.6.2 write for one spec.
func (s *Store) writeEntry(spec RouteSpec) (RegisteredRoute, error) {
	ifID, gw, err := s.resolver.resolve(spec.Prefix.Family, spec.Node)
	if err != nil {
		return RegisteredRoute{}, err
	}
	entry := RegisteredRoute{Prefix: spec.Prefix, InterfaceId: ifID, NextHop: gw}

	alreadyExists, err := s.writer.create(entry)
	if err != nil {
		return RegisteredRoute{}, newErr(WriteFailed, "writeEntry", err)
	}
	if alreadyExists {
		if err := s.writer.set(entry); err != nil {
			return RegisteredRoute{}, newErr(WriteFailed, "writeEntry(overwrite)", err)
		}
	}
	return entry, nil
}

// upsertRecord replaces a record with an equal RegisteredRoute in place,
// or appends, per §4.6.3 step 2.
func (s *Store) upsertRecord(rec RouteRecord) {
	for i := range s.records {
		if s.records[i].Concrete.Equal(rec.Concrete) {
			s.records[i] = rec
			return
		}
	}
	s.records = append(s.records, rec)
}

// Apply applies a batch of RouteSpecs transactionally (§4.6.3): the
// entire batch succeeds, or none of it takes effect in the store (the
// OS table is rolled back to match on a best-effort basis).
func (s *Store) Apply(specs []RouteSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []undoEntry
	for _, spec := range specs {
		entry, err := s.writeEntry(spec)
		if err != nil {
			s.rollback(undo)
			return err
		}
		undo = append(undo, undoEntry{kind: undoAdd, concrete: entry})
		s.upsertRecord(RouteRecord{Spec: spec, Concrete: entry})
	}
	return nil
}

// rollback processes undo entries in reverse order. Errors are logged,
// not returned: they must never mask the original failure that triggered
// the rollback.
func (s *Store) rollback(undo []undoEntry) {
	for i := len(undo) - 1; i >= 0; i-- {
		u := undo[i]
		switch u.kind {
		case undoAdd:
			if notFound, err := s.writer.delete(u.concrete); err != nil && !notFound {
				s.errorf("rollback: delete %s: %v", u.concrete, err)
			}
			s.removeRecordByConcrete(u.concrete)
		case undoDelete:
			alreadyExists, err := s.writer.create(u.concrete)
			if err != nil {
				s.errorf("rollback: recreate %s: %v", u.concrete, err)
				continue
			}
			if alreadyExists {
				if err := s.writer.set(u.concrete); err != nil {
					s.errorf("rollback: recreate(overwrite) %s: %v", u.concrete, err)
					continue
				}
			}
			s.upsertRecord(u.record)
		}
	}
}

func (s *Store) removeRecordByConcrete(c RegisteredRoute) {
	for i := range s.records {
		if s.records[i].Concrete.Equal(c) {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return
		}
	}
}

func (s *Store) findRecordIndex(spec RouteSpec) int {
	for i := range s.records {
		if s.records[i].Spec == spec {
			return i
		}
	}
	return -1
}

// Remove transactionally deletes the records matching specs (a
// supplement to §4.6.3's add path, exercising the store's otherwise
// unused delete-undo arm). Specs with no matching record are skipped,
// not errors.
func (s *Store) Remove(specs []RouteSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []undoEntry
	for _, spec := range specs {
		idx := s.findRecordIndex(spec)
		if idx < 0 {
			continue
		}
		rec := s.records[idx]
		notFound, err := s.writer.delete(rec.Concrete)
		if err != nil && !notFound {
			s.rollback(undo)
			return newErr(DeleteFailed, "Remove", err)
		}
		undo = append(undo, undoEntry{kind: undoDelete, concrete: rec.Concrete, record: rec})
		s.records = append(s.records[:idx], s.records[idx+1:]...)
	}
	return nil
}

// Clear deletes every managed route from the OS table on a best-effort
// basis and empties the store (§4.6.5).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.records {
		notFound, err := s.writer.delete(rec.Concrete)
		switch {
		case notFound:
			s.warnf("clear: %s already absent from table", rec.Concrete)
		case err != nil:
			s.errorf("clear: delete %s: %v", rec.Concrete, err)
		}
	}
	s.records = nil
}

// Rebind implements §4.6.6: for every Default-node record in family,
// delete and recreate its table entry against the new best default.
// Per-record failures are logged; processing continues with the rest.
func (s *Store) Rebind(family AddressFamily, best BestDefault) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		rec := &s.records[i]
		if !rec.Spec.Node.IsDefault() || rec.Spec.Prefix.Family != family {
			continue
		}
		old := rec.Concrete
		if notFound, err := s.writer.delete(old); err != nil && !notFound {
			s.errorf("rebind: delete %s: %v", old, err)
			continue
		}

		updated := RegisteredRoute{Prefix: old.Prefix, InterfaceId: best.InterfaceId, NextHop: best.Gateway}
		alreadyExists, err := s.writer.create(updated)
		if err != nil {
			s.errorf("rebind: create %s: %v", updated, err)
			continue
		}
		if alreadyExists {
			if err := s.writer.set(updated); err != nil {
				s.errorf("rebind: overwrite %s: %v", updated, err)
				continue
			}
		}
		rec.Concrete = updated
	}
}
