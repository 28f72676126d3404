package announce

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes each summary as JSON on <prefix>.settled.<tenant_id>.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

var _ Sink = (*NATSSink)(nil)

func NewNATSSink(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url,
		nats.Name("event-settlement"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSSinkFromConn(conn, prefix), nil
}

func NewNATSSinkFromConn(conn *nats.Conn, prefix string) *NATSSink {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "events"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

func (s *NATSSink) Subject(tenantID string) string {
	tenant := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(tenantID)
	if tenant == "" {
		tenant = "unknown"
	}
	return s.prefix + ".settled." + tenant
}

func (s *NATSSink) PublishResult(_ context.Context, eventID string, summary Summary) error {
	if summary.EventID == "" {
		summary.EventID = eventID
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.conn.Publish(s.Subject(summary.TenantID), data); err != nil {
		metricNATSFailed.Add(1)
		return fmt.Errorf("publish to nats: %w", err)
	}
	metricNATSPublished.Add(1)
	return nil
}

func (s *NATSSink) Close() {
	if s.conn != nil {
		_ = s.conn.Drain()
	}
}
