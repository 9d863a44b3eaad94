package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

func TestApplyCommitsAllChangesInOneTransaction(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	uow := NewUnitOfWork(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	finding := &domain.Finding{ID: "f-1", TenantID: "t-1", ProjectID: "p-1", Code: "ISO-A1B2C3D4", CreatedAt: now, UpdatedAt: now}
	assignment := &domain.ProjectFramework{ID: "pf-1", TenantID: "t-1", ProjectID: "p-1", Version: 4, UpdatedAt: now}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO findings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE project_frameworks").
		WithArgs("t-1", "pf-1", int64(4), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := uow.Apply(context.Background(), []domain.Change{
		{Kind: domain.ChangeCreated, Entity: finding},
		{Kind: domain.ChangeUpdated, Entity: assignment},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if assignment.Version != 5 {
		t.Fatalf("expected version bumped to 5, got %d", assignment.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyReportsStaleVersionAsConflict(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	uow := NewUnitOfWork(db)
	assignment := &domain.ProjectFramework{ID: "pf-1", TenantID: "t-1", Version: 2}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE project_frameworks").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := uow.Apply(context.Background(), []domain.Change{{Kind: domain.ChangeUpdated, Entity: assignment}})
	if !domain.IsKind(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	if assignment.Version != 2 {
		t.Fatalf("version must not change on conflict, got %d", assignment.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyPersistsDeleteAsTombstoneUpdate(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	uow := NewUnitOfWork(db)
	deletedAt := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	actor := "u-1"
	doc := &domain.Document{ID: "d-1", TenantID: "t-1", FileName: "policy.pdf"}
	doc.IsDeleted = true
	doc.DeletedAt = &deletedAt
	doc.DeletedBy = &actor

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").
		WithArgs("t-1", "d-1", "policy.pdf", "", "", int64(0), nil, 0, sqlmock.AnyArg(), true, &deletedAt, &actor).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := uow.Apply(context.Background(), []domain.Change{{Kind: domain.ChangeDeleted, Entity: doc}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyRollsBackOnInsertFailure(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	uow := NewUnitOfWork(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO check_runs").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := uow.Apply(context.Background(), []domain.Change{{Kind: domain.ChangeCreated, Entity: &domain.CheckRun{ID: "r-1"}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
