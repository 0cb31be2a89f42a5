// Package bridge carries harness target calls over a WebSocket.
//
// Each request is one JSON text message and is answered by exactly one
// response with the same id. Errors travel as a kind plus a message and are
// mapped back to the harness sentinel errors on the client, so a remote
// target fails the same way a local one does.
//
//	-> {"id":3,"op":"wait_visible","selector":"*[data-id=\"terminalCli\"]","timeout_ms":10000}
//	<- {"id":3,"ok":true}
//	-> {"id":4,"op":"text","selector":"#missing"}
//	<- {"id":4,"ok":false,"error":{"kind":"element_not_found","message":"#missing: element not found"}}
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/termcheck/internal/harness"
)

// Op names a target operation.
type Op string

const (
	OpClick         Op = "click"
	OpSendKeys      Op = "send_keys"
	OpWaitVisible   Op = "wait_visible"
	OpText          Op = "text"
	OpExecuteScript Op = "execute_script"
	OpAddFile       Op = "add_file"
	OpOpenFile      Op = "open_file"
	OpReset         Op = "reset"
)

// Request is a client to server message.
type Request struct {
	ID       uint64 `json:"id"`
	Op       Op     `json:"op"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Code     string `json:"code,omitempty"`
	Path     string `json:"path,omitempty"`
	Content  string `json:"content,omitempty"`

	// TimeoutMS is the wait timeout for wait_visible and the call deadline
	// for everything else. Zero means none.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// Response answers the request with the same ID.
type Response struct {
	ID    uint64     `json:"id"`
	OK    bool       `json:"ok"`
	Text  string     `json:"text,omitempty"`
	Error *WireError `json:"error,omitempty"`
}

// WireError is an error in transit.
type WireError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Wire error kinds.
const (
	KindElementNotFound = "element_not_found"
	KindScriptRejected  = "script_rejected"
	KindStaleElement    = "stale_element"
	KindConnectionLost  = "connection_lost"
	KindTimeout         = "timeout"
	KindBadRequest      = "bad_request"
	KindUnsupported     = "unsupported"
	KindInternal        = "internal"
)

var errUnsupported = errors.New("operation not supported by target")

var sentinels = []struct {
	kind string
	err  error
}{
	{KindConnectionLost, harness.ErrConnectionLost},
	{KindElementNotFound, harness.ErrElementNotFound},
	{KindScriptRejected, harness.ErrScriptRejected},
	{KindStaleElement, harness.ErrStaleElement},
	{KindTimeout, context.DeadlineExceeded},
	{KindUnsupported, errUnsupported},
}

// encodeError converts a target error for the wire.
func encodeError(err error) *WireError {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &WireError{Kind: s.kind, Message: err.Error()}
		}
	}
	return &WireError{Kind: KindInternal, Message: err.Error()}
}

// decodeError rebuilds an error that wraps the sentinel for its kind.
func decodeError(we *WireError) error {
	if we == nil {
		return nil
	}
	for _, s := range sentinels {
		if we.Kind == s.kind {
			return &remoteError{msg: we.Message, err: s.err}
		}
	}
	return &remoteError{msg: fmt.Sprintf("%s: %s", we.Kind, we.Message)}
}

// remoteError keeps the remote message verbatim while unwrapping to the
// matching sentinel.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return "remote: " + e.msg }

func (e *remoteError) Unwrap() error { return e.err }
