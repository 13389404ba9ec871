// Package audit records security-relevant transitions of the admin session
// machine. Emission is fire-and-forget: an unavailable audit sink must never
// block or fail an authentication flow.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"admin-auth/internal/client"
	"admin-auth/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventLoginSucceeded   EventType = "admin_login_succeeded"
	EventLoginFailed      EventType = "admin_login_failed"
	EventLogout           EventType = "admin_logout"
	EventWalletDisconnect EventType = "admin_session_invalidated_wallet_disconnect"
	EventRoleSuperseded   EventType = "admin_session_superseded_role_change"
	EventSessionRestored  EventType = "admin_session_restored"
	EventStaleSessionDrop EventType = "admin_stale_session_discarded"
	EventVerifyRejected   EventType = "admin_session_verify_rejected"
)

// Event is one security event.
type Event struct {
	ID       string    `json:"id"`
	Type     EventType `json:"type"`
	Address  string    `json:"address,omitempty"`
	Role     string    `json:"role,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// Emitter receives security events.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// KafkaEmitter publishes events to the audit topic.
type KafkaEmitter struct {
	producer *client.KafkaProducer
}

// NewKafkaEmitter wraps a producer.
func NewKafkaEmitter(producer *client.KafkaProducer) *KafkaEmitter {
	return &KafkaEmitter{producer: producer}
}

// Emit publishes the event. Failures are logged and dropped.
func (e *KafkaEmitter) Emit(ctx context.Context, ev Event) {
	stamp(&ev)

	value, err := json.Marshal(ev)
	if err != nil {
		util.Error("Failed to encode audit event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := e.producer.Publish(ctx, []byte(ev.Address), value); err != nil {
		util.Warn("Failed to publish audit event",
			zap.String("type", string(ev.Type)),
			zap.Error(err))
		return
	}
	util.Debug("Audit event published", zap.String("type", string(ev.Type)))
}

// LogEmitter writes events to the application log only. Used when Kafka is
// not configured.
type LogEmitter struct{}

// Emit logs the event.
func (LogEmitter) Emit(_ context.Context, ev Event) {
	stamp(&ev)
	util.Info("Security event",
		zap.String("id", ev.ID),
		zap.String("type", string(ev.Type)),
		zap.String("address", ev.Address),
		zap.String("role", ev.Role),
		zap.String("strategy", ev.Strategy),
		zap.String("detail", ev.Detail))
}

func stamp(ev *Event) {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
}
