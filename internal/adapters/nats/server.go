package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapsync/internal/adapters/channel"
)

// Commander is the command channel the server forwards to.
type Commander interface {
	DispatchJSON(ctx context.Context, method string, body []byte) channel.Reply
}

// CommandServer answers requests on mapsync.cmd.<method>.
type CommandServer struct {
	conn   *nats.Conn
	cmd    Commander
	queue  string
	sub    *nats.Subscription
	logger *slog.Logger
}

// NewCommandServer creates a server in queue group queue.
func NewCommandServer(conn *nats.Conn, cmd Commander, queue string) *CommandServer {
	return &CommandServer{
		conn:   conn,
		cmd:    cmd,
		queue:  queue,
		logger: slog.Default().With("component", "nats_commands"),
	}
}

// Start subscribes. Requests are handled until ctx is done or Close.
func (s *CommandServer) Start(ctx context.Context) error {
	sub, err := s.conn.QueueSubscribe(SubjectCommandPrefix+">", s.queue, func(msg *nats.Msg) {
		method, ok := MethodFromSubject(msg.Subject)
		if !ok {
			return
		}
		data := s.Handle(ctx, method, msg.Data)
		if msg.Reply == "" {
			s.logger.Debug("command without reply subject", "method", method)
			return
		}
		if err := msg.Respond(data); err != nil {
			s.logger.Warn("command reply failed", "method", method, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe commands: %w", err)
	}
	s.sub = sub
	s.logger.Info("nats command channel listening", "subject", SubjectCommandPrefix+">", "queue", s.queue)
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	return nil
}

// Handle runs one command and encodes its reply.
func (s *CommandServer) Handle(ctx context.Context, method string, body []byte) []byte {
	reply := s.cmd.DispatchJSON(ctx, method, body)
	data, err := json.Marshal(reply)
	if err != nil {
		data, _ = json.Marshal(channel.Reply{Error: &channel.ReplyError{Code: channel.CodeInternal, Message: err.Error()}})
	}
	return data
}

// Close unsubscribes.
func (s *CommandServer) Close() {
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
}

// MethodFromSubject extracts the method from mapsync.cmd.<method>.
func MethodFromSubject(subject string) (string, bool) {
	method, ok := strings.CutPrefix(subject, SubjectCommandPrefix)
	return method, ok && method != ""
}
