package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

// Handler reacts to a committed entity change.
type Handler func(ctx context.Context, event domain.LifecycleEvent) error

type subscription struct {
	name    string
	handler Handler
}

// Dispatcher is an in-process synchronous publish/subscribe hub for lifecycle
// events. Handler failures are logged and never reach the publisher.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.ChangeKind][]subscription
	now      func() time.Time
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.ChangeKind][]subscription),
		now:      time.Now,
	}
}

func (d *Dispatcher) Subscribe(kind domain.ChangeKind, name string, handler Handler) {
	if handler == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], subscription{name: name, handler: handler})
}

// SubscribeAll registers handler for every change kind.
func (d *Dispatcher) SubscribeAll(name string, handler Handler) {
	for _, kind := range []domain.ChangeKind{domain.ChangeCreated, domain.ChangeUpdated, domain.ChangeDeleted} {
		d.Subscribe(kind, name, handler)
	}
}

// Record implements ports.LifecycleRecorder.
func (d *Dispatcher) Record(
	ctx context.Context,
	scope domain.Scope,
	entity domain.Auditable,
	kind domain.ChangeKind,
	changedFields []string,
) {
	if entity == nil {
		return
	}
	event := domain.LifecycleEvent{
		Kind:          kind,
		EntityType:    entity.EntityType(),
		EntityID:      entity.EntityID(),
		EntityName:    entity.DisplayName(),
		ChangedFields: append([]string(nil), changedFields...),
		Entity:        entity,
		Scope:         scope,
		OccurredAt:    d.now().UTC(),
	}
	if scoped, ok := entity.(domain.ProjectScoped); ok {
		event.ProjectID = scoped.ProjectRef()
	}
	d.Publish(ctx, event)
}

func (d *Dispatcher) Publish(ctx context.Context, event domain.LifecycleEvent) {
	d.mu.RLock()
	subs := append([]subscription(nil), d.handlers[event.Kind]...)
	d.mu.RUnlock()

	for _, sub := range subs {
		if err := invoke(ctx, sub.handler, event); err != nil {
			slog.Error("lifecycle_handler_failed",
				"handler", sub.name,
				"kind", string(event.Kind),
				"entity_type", event.EntityType,
				"entity_id", event.EntityID,
				"tenant_id", event.Scope.TenantID,
				"error", err,
			)
		}
	}
}

func invoke(ctx context.Context, handler Handler, event domain.LifecycleEvent) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("handler panic: %v", recovered)
		}
	}()
	return handler(ctx, event)
}
