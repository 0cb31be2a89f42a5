package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/roach88/termcheck/internal/harness"
)

// Handler serves a harness.Target to bridge clients. Requests from all
// connections are executed one at a time against the shared target.
type Handler struct {
	target   harness.Target
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu sync.Mutex
}

// NewHandler creates a handler for target. A nil logger discards output.
func NewHandler(target harness.Target, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		target: target,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin: func(r *http.Request) bool {
				// Automation clients are not browsers; browsers must be same-origin.
				origin := r.Header.Get("Origin")
				return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
			},
		},
	}
}

// ServeHTTP upgrades the connection and answers requests until the client
// goes away. A disconnect cancels the request in progress.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("bridge upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	h.logger.Info("bridge client connected", "remote", r.RemoteAddr)
	defer h.logger.Info("bridge client disconnected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	msgs := make(chan []byte)
	go func() {
		defer cancel()
		defer close(msgs)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.logger.Error("bridge read error", "error", err)
				}
				return
			}
			select {
			case msgs <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for data := range msgs {
		var resp Response
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			resp = Response{ID: requestID(data), Error: &WireError{Kind: KindBadRequest, Message: err.Error()}}
		} else {
			resp = h.dispatch(ctx, req)
		}

		out, err := json.Marshal(resp)
		if err != nil {
			h.logger.Error("bridge encode error", "error", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			h.logger.Error("bridge write error", "error", err)
			return
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, req Request) Response {
	h.mu.Lock()
	defer h.mu.Unlock()

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	if req.Op != OpWaitVisible && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp := Response{ID: req.ID, OK: true}
	var err error
	switch req.Op {
	case OpClick:
		err = h.target.Click(ctx, req.Selector)
	case OpSendKeys:
		err = h.target.SendKeys(ctx, req.Selector, req.Text)
	case OpWaitVisible:
		err = h.target.WaitVisible(ctx, req.Selector, timeout)
	case OpText:
		resp.Text, err = h.target.Text(ctx, req.Selector)
	case OpExecuteScript:
		err = h.target.ExecuteScript(ctx, req.Code)
	case OpAddFile:
		err = h.target.AddFile(ctx, req.Path, req.Content)
	case OpOpenFile:
		err = h.target.OpenFile(ctx, req.Path)
	case OpReset:
		rs, ok := h.target.(harness.Resetter)
		if !ok {
			err = errUnsupported
			break
		}
		err = rs.Reset(ctx)
	default:
		resp.OK = false
		resp.Error = &WireError{Kind: KindBadRequest, Message: fmt.Sprintf("unknown op %q", req.Op)}
		return resp
	}

	h.logger.Debug("bridge request", "id", req.ID, "op", req.Op, "error", err)
	if err != nil {
		resp.OK = false
		resp.Error = encodeError(err)
	}
	return resp
}

// requestID recovers the id of a request whose other fields did not decode,
// so the client can match the error. Zero when even the id is unreadable.
func requestID(data []byte) uint64 {
	var head struct {
		ID uint64 `json:"id"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0
	}
	return head.ID
}
