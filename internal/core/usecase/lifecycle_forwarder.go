package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
	"github.com/kirillkom/compliance-auditor/internal/core/tracking"
)

// LifecycleForwarder publishes committed lifecycle events to the message bus
// for out-of-process consumers.
type LifecycleForwarder struct {
	bus ports.LifecycleBus
}

func NewLifecycleForwarder(bus ports.LifecycleBus) *LifecycleForwarder {
	return &LifecycleForwarder{bus: bus}
}

func (f *LifecycleForwarder) Register(dispatcher *tracking.Dispatcher) {
	dispatcher.SubscribeAll("lifecycle_forwarder", f.Forward)
}

func (f *LifecycleForwarder) Forward(ctx context.Context, event domain.LifecycleEvent) error {
	if !event.Scope.HasTenant() {
		return nil
	}
	if err := f.bus.PublishLifecycle(ctx, event.Message()); err != nil {
		return fmt.Errorf("publish lifecycle event: %w", err)
	}
	return nil
}

// DocumentWarmupHandler consumes forwarded lifecycle messages and caches the
// extracted text of newly uploaded documents.
func DocumentWarmupHandler(warmer ports.DocumentExtractionWarmer) func(context.Context, domain.LifecycleMessage) error {
	return func(ctx context.Context, msg domain.LifecycleMessage) error {
		if msg.Kind != domain.ChangeCreated || msg.EntityType != domain.EntityTypeDocument {
			return nil
		}
		slog.Info("document_warmup", "document_id", msg.EntityID, "tenant_id", msg.TenantID)
		return warmer.WarmExtraction(ctx, domain.SystemScope(msg.TenantID), msg.EntityID)
	}
}
