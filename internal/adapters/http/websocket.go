package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/mapsync/internal/core/domain"
	"github.com/samirrijal/mapsync/internal/core/usecases"
	"github.com/samirrijal/mapsync/internal/pkg/metrics"
)

const wsBuffer = 64

var (
	errSubscriberClosed = errors.New("websocket subscriber closed")
	errSubscriberSlow   = errors.New("websocket subscriber too slow")
)

// wsSink queues events for one WebSocket client. Send never blocks the
// download callbacks: a full queue drops the event.
type wsSink struct {
	out  chan domain.DownloadEvent
	done chan struct{}
}

func newWSSink() *wsSink {
	return &wsSink{
		out:  make(chan domain.DownloadEvent, wsBuffer),
		done: make(chan struct{}),
	}
}

func (s *wsSink) Send(ctx context.Context, e domain.DownloadEvent) error {
	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}
	select {
	case s.out <- e:
		return nil
	default:
		return errSubscriberSlow
	}
}

// OfflineEventsHandler attaches the connection as the offline event stream
// subscriber. A newer connection replaces it; client messages are read only
// to notice the close.
func OfflineEventsHandler(stream *usecases.EventStream) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		logger := slog.Default().With("component", "ws", "remote", c.RemoteAddr().String())
		logger.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		sink := newWSSink()
		detach := stream.Attach(sink)

		var mu sync.Mutex
		write := func(kind int, data []byte) error {
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(kind, data)
		}

		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case e := <-sink.out:
					data, err := json.Marshal(e)
					if err != nil {
						logger.Error("encode event", "error", err)
						continue
					}
					if err := write(websocket.TextMessage, data); err != nil {
						return
					}
				case <-ticker.C:
					if err := write(websocket.PingMessage, nil); err != nil {
						return
					}
				case <-sink.done:
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}

		detach()
		close(sink.done)
		logger.Info("ws client disconnected")
	}
}
