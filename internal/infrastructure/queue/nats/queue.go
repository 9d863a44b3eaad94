package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

// Bus carries lifecycle messages between the api and the worker. Each message
// is published on <prefix>.<EntityType>.<Kind> so consumers can filter by subject.
type Bus struct {
	conn     *nats.Conn
	prefix   string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subjectPrefix string) (*Bus, error) {
	return NewWithOptions(url, subjectPrefix, Options{})
}

func NewWithOptions(url, subjectPrefix string, options Options) (*Bus, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("compliance-auditor"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Bus{
		conn:     conn,
		prefix:   normalizePrefix(subjectPrefix),
		executor: options.ResilienceExecutor,
	}, nil
}

func (b *Bus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *Bus) PublishLifecycle(ctx context.Context, msg domain.LifecycleMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal lifecycle message: %w", err)
	}
	subject := subjectFor(b.prefix, msg)

	call := func(_ context.Context) error {
		if err := b.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if b.executor != nil {
		err = b.executor.Execute(ctx, "nats.publish", call, classifyPublishError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return resilience.WrapTemporary("nats publish", err, classifyPublishError)
	}
	return nil
}

// classifyPublishError retries connection-level failures; an oversized or
// malformed message fails the same way on every attempt.
func classifyPublishError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	switch {
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrReconnectBufExceeded),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.Transient
	case errors.Is(err, nats.ErrMaxPayload), errors.Is(err, nats.ErrBadSubject):
		return resilience.Rejected
	default:
		return resilience.Permanent
	}
}

// SubscribeLifecycle blocks until ctx is cancelled, then drains the subscription.
// Handler errors are logged; redelivery is not attempted.
func (b *Bus) SubscribeLifecycle(ctx context.Context, handler func(context.Context, domain.LifecycleMessage) error) error {
	sub, err := b.conn.QueueSubscribe(b.prefix+".>", workerQueueGroup, func(raw *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		msg, err := decodeMessage(raw.Data)
		if err != nil {
			slog.Warn("lifecycle_message_invalid", "subject", raw.Subject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, msg); err != nil {
			slog.Error("lifecycle_handler_error",
				"subject", raw.Subject,
				"entity_type", msg.EntityType,
				"entity_id", msg.EntityID,
				"error", err,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := b.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "compliance.lifecycle"
	}
	return prefix
}

func subjectFor(prefix string, msg domain.LifecycleMessage) string {
	return prefix + "." + subjectToken(msg.EntityType) + "." + subjectToken(string(msg.Kind))
}

// subjectToken strips characters NATS treats as separators or wildcards.
func subjectToken(value string) string {
	value = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n':
			return -1
		}
		return r
	}, value)
	if value == "" {
		return "unknown"
	}
	return value
}

func decodeMessage(data []byte) (domain.LifecycleMessage, error) {
	var msg domain.LifecycleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.LifecycleMessage{}, fmt.Errorf("decode lifecycle message: %w", err)
	}
	if msg.TenantID == "" || msg.EntityID == "" {
		return domain.LifecycleMessage{}, errors.New("lifecycle message without tenant or entity")
	}
	return msg, nil
}
