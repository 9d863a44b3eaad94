package domain

import "time"

// SoftDelete is the tombstone embedded in every auditable entity. A row with
// IsDeleted=true stays physically present but is hidden from default reads.
type SoftDelete struct {
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`
}

func (s *SoftDelete) Tombstone() *SoftDelete {
	return s
}

func (s *SoftDelete) MarkDeleted(actorID *string, at time.Time) {
	deletedAt := at.UTC()
	s.IsDeleted = true
	s.DeletedAt = &deletedAt
	if actorID != nil {
		actor := *actorID
		s.DeletedBy = &actor
	} else {
		s.DeletedBy = nil
	}
}

func (s *SoftDelete) Restore() {
	s.IsDeleted = false
	s.DeletedAt = nil
	s.DeletedBy = nil
}

// Auditable is implemented by every entity whose mutations are captured in the
// activity log and whose deletions become tombstones.
type Auditable interface {
	EntityType() string
	EntityID() string
	DisplayName() string
	Tombstone() *SoftDelete
}

// ProjectScoped entities expose the project they belong to so audit records can
// be filtered per project.
type ProjectScoped interface {
	ProjectRef() string
}

// Timestamped entities get their bookkeeping timestamps maintained by the unit of work.
type Timestamped interface {
	Touch(now time.Time, created bool)
}
