package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/DoyleJ11/tourney/internal/hub"
	"github.com/DoyleJ11/tourney/internal/lobby"
	"github.com/DoyleJ11/tourney/internal/protocol"
	"github.com/DoyleJ11/tourney/internal/tournament"
)

// A snapshot carries the whole question list, so frames can be much larger
// than the library default.
const readLimit = 1 << 20

type options struct {
	outboxSize     int
	readTimeout    time.Duration
	writeTimeout   time.Duration
	originPatterns []string
}

type Option func(*options)

func WithOutboxSize(n int) Option { return func(o *options) { o.outboxSize = n } }

func WithTimeouts(read, write time.Duration) Option {
	return func(o *options) {
		o.readTimeout = read
		o.writeTimeout = write
	}
}

// WithOriginPatterns loosens the same-origin check, e.g. "localhost:*" in dev.
func WithOriginPatterns(patterns ...string) Option {
	return func(o *options) { o.originPatterns = patterns }
}

func Handler(h *hub.Hub, logger *zap.SugaredLogger, opts ...Option) http.HandlerFunc {
	o := options{outboxSize: 16, readTimeout: 10 * time.Minute, writeTimeout: 3 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("code")))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		lb, err := h.Get(r.Context(), code)
		if err != nil {
			if errors.Is(err, tournament.ErrNotFound) {
				http.Error(w, "lobby not found", http.StatusNotFound)
				return
			}
			http.Error(w, "lobby unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: o.originPatterns,
		})
		if err != nil {
			logger.Debugw("websocket accept failed", "code", code, "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(readLimit)

		connID := uuid.NewString()
		log := logger.With("code", code, "conn", connID)

		out := make(chan protocol.Message, o.outboxSize)
		if err := lb.Send(r.Context(), lobby.Connect{ConnID: connID, Outbox: out}); err != nil {
			conn.Close(websocket.StatusGoingAway, "lobby closed")
			return
		}
		log.Debugw("peer connected")
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = lb.Send(ctx, lobby.Disconnect{ConnID: connID})
			log.Debugw("peer disconnected")
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case m, ok := <-out:
					if !ok {
						// lobby shut down
						conn.Close(websocket.StatusGoingAway, "lobby closed")
						return
					}
					if err := write(writeCtx, conn, m, o.writeTimeout); err != nil {
						log.Debugw("write failed", "error", err)
						conn.Close(websocket.StatusInternalError, "write failed")
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), o.readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debugw("read failed", "error", err)
				}
				return
			}

			msg, err := protocol.Decode(data)
			if err != nil {
				_ = write(r.Context(), conn, protocol.Error{Reason: err.Error()}, o.writeTimeout)
				continue
			}

			if err := lb.Send(r.Context(), lobby.FromPeer{ConnID: connID, Msg: msg}); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, m protocol.Message, timeout time.Duration) error {
	payload, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}
