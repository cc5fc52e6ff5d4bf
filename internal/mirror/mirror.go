// Package mirror republishes accepted PACS batches on NATS so other
// consumers can observe them.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/preston-bernstein/pacs-bridge/internal/domain/events"
	"github.com/preston-bernstein/pacs-bridge/internal/logging"
)

const defaultSubject = "pacsbridge"

type publisher interface {
	Publish(subject string, data []byte) error
}

// Envelope wraps each mirrored batch.
type Envelope struct {
	ID     string          `json:"id"`
	Source string          `json:"source"`
	Kind   events.Kind     `json:"kind"`
	Time   time.Time       `json:"time"`
	Data   json.RawMessage `json:"data"`
}

type Config struct {
	URL     string
	Subject string
	Source  string
	Name    string
}

// NATSMirror publishes to <subject>.<kind> on core NATS.
type NATSMirror struct {
	conn    publisher
	closer  func()
	subject string
	source  string
	logger  *slog.Logger
	now     func() time.Time
}

// Connect dials NATS. Reconnects are handled by the client library.
func Connect(cfg Config, logger *slog.Logger) (*NATSMirror, error) {
	name := cfg.Name
	if name == "" {
		name = "pacs-bridge"
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logger, "nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info(logger, "nats reconnected", slog.String(logging.FieldURL, nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	m := newMirror(nc, cfg, logger)
	m.closer = nc.Close
	return m, nil
}

func newMirror(conn publisher, cfg Config, logger *slog.Logger) *NATSMirror {
	subject := cfg.Subject
	if subject == "" {
		subject = defaultSubject
	}
	return &NATSMirror{
		conn:    conn,
		subject: subject,
		source:  cfg.Source,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish sends payload inside an Envelope.
func (m *NATSMirror) Publish(ctx context.Context, kind events.Kind, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode mirror payload: %w", err)
	}
	env := Envelope{
		ID:     uuid.NewString(),
		Source: m.source,
		Kind:   kind,
		Time:   m.now().UTC(),
		Data:   data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode mirror envelope: %w", err)
	}
	subject := m.subject + "." + string(kind)
	if err := m.conn.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	logging.Debug(logging.FromContext(ctx, m.logger), "mirrored batch",
		slog.String("subject", subject),
		slog.String("id", env.ID),
	)
	return nil
}

func (m *NATSMirror) Close() {
	if m.closer != nil {
		m.closer()
	}
}
