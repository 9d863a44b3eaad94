package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

type busFake struct {
	published []domain.LifecycleMessage
	err       error
}

func (f *busFake) PublishLifecycle(_ context.Context, msg domain.LifecycleMessage) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *busFake) SubscribeLifecycle(context.Context, func(context.Context, domain.LifecycleMessage) error) error {
	return nil
}

func TestLifecycleForwarderPublishesMessage(t *testing.T) {
	bus := &busFake{}
	occurred := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	event := domain.LifecycleEvent{
		Kind:       domain.ChangeCreated,
		EntityType: domain.EntityTypeDocument,
		EntityID:   "doc-1",
		EntityName: "policy.pdf",
		ProjectID:  testProject,
		Scope:      domain.Scope{TenantID: testTenant, ActorID: testOwner},
		OccurredAt: occurred,
	}

	if err := NewLifecycleForwarder(bus).Forward(context.Background(), event); err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected one message, got %d", len(bus.published))
	}
	msg := bus.published[0]
	if msg.TenantID != testTenant || msg.ActorID != testOwner || msg.EntityID != "doc-1" || !msg.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestLifecycleForwarderSkipsTenantlessEvents(t *testing.T) {
	bus := &busFake{}
	err := NewLifecycleForwarder(bus).Forward(context.Background(), domain.LifecycleEvent{Kind: domain.ChangeCreated, EntityID: "doc-1"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if len(bus.published) != 0 {
		t.Fatalf("expected nothing published, got %+v", bus.published)
	}
}

func TestLifecycleForwarderWrapsBusError(t *testing.T) {
	bus := &busFake{err: errors.New("no servers")}
	err := NewLifecycleForwarder(bus).Forward(context.Background(), domain.LifecycleEvent{Scope: domain.SystemScope(testTenant)})
	if !errors.Is(err, bus.err) {
		t.Fatalf("expected bus error, got %v", err)
	}
}
