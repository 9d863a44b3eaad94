package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

type pendingOp int

const (
	opAdd pendingOp = iota + 1
	opModify
	opRemove
)

type pendingEntry struct {
	op     pendingOp
	entity domain.Auditable
}

// Session is a unit of work over auditable entities. Removals are rewritten into
// tombstone updates, modified attributes are derived from snapshots taken at
// Track time, and lifecycle events are recorded only after a successful commit.
type Session struct {
	scope     domain.Scope
	committer ports.ChangeCommitter
	recorder  ports.LifecycleRecorder
	now       func() time.Time

	snapshots map[domain.Auditable]snapshot
	pending   []pendingEntry
	index     map[domain.Auditable]int
}

func NewSession(scope domain.Scope, committer ports.ChangeCommitter, recorder ports.LifecycleRecorder) *Session {
	return &Session{
		scope:     scope,
		committer: committer,
		recorder:  recorder,
		now:       time.Now,
		snapshots: make(map[domain.Auditable]snapshot),
		index:     make(map[domain.Auditable]int),
	}
}

// WithClock overrides the commit timestamp source.
func (s *Session) WithClock(now func() time.Time) *Session {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Session) Scope() domain.Scope {
	return s.scope
}

// Track records the current values of entities loaded from storage.
func (s *Session) Track(entities ...domain.Auditable) {
	for _, entity := range entities {
		if entity == nil {
			continue
		}
		s.snapshots[entity] = takeSnapshot(entity)
	}
}

func (s *Session) Add(entity domain.Auditable) {
	s.stage(opAdd, entity)
}

// Modify stages an update of a tracked entity.
func (s *Session) Modify(entity domain.Auditable) error {
	if entity == nil {
		return domain.WrapError(domain.ErrInvalidInput, "session modify", errors.New("entity is nil"))
	}
	if _, ok := s.snapshots[entity]; !ok {
		if i, staged := s.index[entity]; staged && s.pending[i].op == opAdd {
			return nil
		}
		return domain.WrapError(
			domain.ErrInvalidInput,
			"session modify",
			fmt.Errorf("%s %s is not tracked", entity.EntityType(), entity.EntityID()),
		)
	}
	s.stage(opModify, entity)
	return nil
}

// Remove stages a soft delete. It never results in a physical delete.
func (s *Session) Remove(entity domain.Auditable) {
	s.stage(opRemove, entity)
}

func (s *Session) Pending() int {
	return len(s.pending)
}

func (s *Session) stage(op pendingOp, entity domain.Auditable) {
	if entity == nil {
		return
	}
	if i, ok := s.index[entity]; ok {
		current := s.pending[i].op
		switch {
		case current == opAdd:
			// still a create; removal of an unsaved entity drops it
			if op == opRemove {
				s.pending[i].op = 0
			}
		case op == opRemove || current == opModify:
			s.pending[i].op = op
		}
		return
	}
	s.index[entity] = len(s.pending)
	s.pending = append(s.pending, pendingEntry{op: op, entity: entity})
}

// Commit applies every staged change atomically and then records one lifecycle
// event per entity. Modified entities without changed attributes are skipped.
func (s *Session) Commit(ctx context.Context) error {
	if s.committer == nil {
		return errors.New("session commit: committer is nil")
	}
	now := s.now().UTC()

	changes := make([]domain.Change, 0, len(s.pending))
	reverts := make([]func(), 0)
	for _, entry := range s.pending {
		change, revert, ok := s.rewrite(entry, now)
		if !ok {
			continue
		}
		changes = append(changes, change)
		if revert != nil {
			reverts = append(reverts, revert)
		}
	}

	if len(changes) == 0 {
		s.reset()
		return nil
	}

	if err := s.committer.Apply(ctx, changes); err != nil {
		for _, revert := range reverts {
			revert()
		}
		return fmt.Errorf("commit unit of work: %w", err)
	}

	for _, change := range changes {
		s.snapshots[change.Entity] = takeSnapshot(change.Entity)
	}
	s.reset()

	if s.recorder != nil {
		for _, change := range changes {
			s.recorder.Record(ctx, s.scope, change.Entity, change.Kind, change.ChangedFields)
		}
	}
	return nil
}

func (s *Session) rewrite(entry pendingEntry, now time.Time) (domain.Change, func(), bool) {
	entity := entry.entity
	switch entry.op {
	case opAdd:
		touch(entity, now, true)
		return domain.Change{Kind: domain.ChangeCreated, Entity: entity}, nil, true

	case opModify:
		before := s.snapshots[entity]
		if len(diff(before, takeSnapshot(entity))) == 0 {
			return domain.Change{}, nil, false
		}
		touch(entity, now, false)
		return domain.Change{
			Kind:          domain.ChangeUpdated,
			Entity:        entity,
			ChangedFields: diff(before, takeSnapshot(entity)),
		}, nil, true

	case opRemove:
		tombstone := entity.Tombstone()
		if tombstone == nil || tombstone.IsDeleted {
			return domain.Change{}, nil, false
		}
		previous := *tombstone
		before, tracked := s.snapshots[entity]
		if !tracked {
			before = takeSnapshot(entity)
		}
		tombstone.MarkDeleted(s.scope.Actor(), now)
		touch(entity, now, false)
		revert := func() { *tombstone = previous }
		return domain.Change{
			Kind:          domain.ChangeDeleted,
			Entity:        entity,
			ChangedFields: diff(before, takeSnapshot(entity)),
		}, revert, true
	}
	return domain.Change{}, nil, false
}

func (s *Session) reset() {
	s.pending = nil
	s.index = make(map[domain.Auditable]int)
}

func touch(entity domain.Auditable, now time.Time, created bool) {
	if stamped, ok := entity.(domain.Timestamped); ok {
		stamped.Touch(now, created)
	}
}
