package webapp

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// taskSubjectPrefix is the subject tree task events are published under.
// Subscribers typically listen on "otterdog.tasks.>".
const taskSubjectPrefix = "otterdog.tasks."

// EventPublisher publishes task lifecycle events to NATS.
type EventPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewEventPublisher connects to the NATS server at url.
func NewEventPublisher(url string, logger zerolog.Logger) (*EventPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("otterdog"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info().Str("url", url).Msg("publishing task events to NATS")
	return &EventPublisher{conn: conn, logger: logger}, nil
}

// Publish sends the current state of a task, the subject carries the
// status. Publishing is best effort, failures only log.
func (p *EventPublisher) Publish(task Task) {
	data, err := json.Marshal(task)
	if err != nil {
		p.logger.Warn().Err(err).Str("task", task.ID).Msg("failed to marshal task event")
		return
	}
	if err := p.conn.Publish(taskSubjectPrefix+string(task.Status), data); err != nil {
		p.logger.Warn().Err(err).Str("task", task.ID).Msg("failed to publish task event")
	}
}

// Close flushes and closes the connection.
func (p *EventPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Flush()
		p.conn.Close()
	}
}
