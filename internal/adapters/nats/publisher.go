package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/ports"
)

// Subjects.
const (
	SubjectOfflineEvents = "mapsync.offline.events"
	SubjectOverlayTap    = "mapsync.overlay.tap"
	SubjectCommandPrefix = "mapsync.cmd."
)

// TapMessage is the payload published for an overlay tap.
type TapMessage struct {
	Kind domain.OverlayKind `json:"kind"`
	ID   string             `json:"id"`
}

// Publisher pushes download events and overlay taps onto NATS. Events use
// core NATS: nothing is replayed to late subscribers.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials NATS with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("mapsyncd"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// NewPublisher publishes on conn.
func NewPublisher(conn *nats.Conn) *Publisher {
	return &Publisher{conn: conn, logger: slog.Default().With("component", "nats")}
}

// Send implements ports.EventSink.
func (p *Publisher) Send(ctx context.Context, event domain.DownloadEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectOfflineEvents, data)
}

// OnOverlayTap implements ports.TapListener.
func (p *Publisher) OnOverlayTap(kind domain.OverlayKind, id string) {
	data, err := json.Marshal(TapMessage{Kind: kind, ID: id})
	if err != nil {
		return
	}
	if err := p.conn.Publish(SubjectOverlayTap, data); err != nil {
		p.logger.Warn("tap not published", "kind", kind, "id", id, "error", err)
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

var (
	_ ports.EventSink   = (*Publisher)(nil)
	_ ports.TapListener = (*Publisher)(nil)
)
