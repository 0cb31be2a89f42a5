package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/roach88/termcheck/internal/harness"
)

// responseGrace is how long past a request's own timeout the client waits
// for the server to answer before declaring the connection dead.
const responseGrace = 5 * time.Second

// Client is a harness.Target backed by a bridge server. Calls are
// serialised: one request is in flight at a time.
type Client struct {
	url string

	mu     sync.Mutex
	conn   *websocket.Conn
	nextID uint64
}

var (
	_ harness.Target   = (*Client)(nil)
	_ harness.Resetter = (*Client)(nil)
)

// Dial connects to a bridge server at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge at %s: %w", url, err)
	}
	return &Client{url: url, conn: conn}, nil
}

// do sends req and waits for its response. Any transport failure closes the
// connection; later calls report ErrConnectionLost.
//
// A deadline on ctx travels as timeout_ms. The server enforces it and
// answers with a timeout error, so an expired deadline leaves the
// connection usable. Cancellation interrupts the read, which leaves the
// websocket unreadable, so it closes the connection.
func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return Response{}, fmt.Errorf("bridge %s: %w", c.url, harness.ErrConnectionLost)
	}

	c.nextID++
	req.ID = c.nextID
	if req.TimeoutMS == 0 {
		if dl, ok := ctx.Deadline(); ok {
			req.TimeoutMS = max(1, time.Until(dl).Milliseconds())
		}
	}

	conn := c.conn
	readDeadline := time.Time{}
	if req.TimeoutMS > 0 {
		readDeadline = time.Now().Add(time.Duration(req.TimeoutMS)*time.Millisecond + responseGrace)
	}
	if err := conn.SetReadDeadline(readDeadline); err != nil {
		return Response{}, c.fail(ctx, err)
	}
	stop := context.AfterFunc(ctx, func() {
		if errors.Is(ctx.Err(), context.Canceled) {
			_ = conn.SetReadDeadline(time.Now())
		}
	})
	defer stop()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("bridge: encode request: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return Response{}, c.fail(ctx, err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return Response{}, c.fail(ctx, err)
		}
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			return Response{}, fmt.Errorf("bridge: malformed response: %w", err)
		}
		if resp.ID != req.ID && !undecodable(resp) {
			// Late answer to an earlier request.
			continue
		}
		return resp, nil
	}
}

// undecodable reports whether resp answers a request the server could not
// even parse for an ID. With one request in flight it can only be ours.
func undecodable(resp Response) bool {
	return resp.ID == 0 && resp.Error != nil && resp.Error.Kind == KindBadRequest
}

// fail drops the connection. Caller holds c.mu.
func (c *Client) fail(ctx context.Context, err error) error {
	_ = c.conn.Close()
	c.conn = nil
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return fmt.Errorf("bridge %s: %v: %w", c.url, err, harness.ErrConnectionLost)
}

func (c *Client) call(ctx context.Context, req Request) (string, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", decodeError(resp.Error)
	}
	return resp.Text, nil
}

// Click implements harness.UI.
func (c *Client) Click(ctx context.Context, selector string) error {
	_, err := c.call(ctx, Request{Op: OpClick, Selector: selector})
	return err
}

// SendKeys implements harness.UI.
func (c *Client) SendKeys(ctx context.Context, selector, text string) error {
	_, err := c.call(ctx, Request{Op: OpSendKeys, Selector: selector, Text: text})
	return err
}

// WaitVisible implements harness.UI.
func (c *Client) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := c.call(ctx, Request{Op: OpWaitVisible, Selector: selector, TimeoutMS: max(1, timeout.Milliseconds())})
	return err
}

// Text implements harness.UI.
func (c *Client) Text(ctx context.Context, selector string) (string, error) {
	return c.call(ctx, Request{Op: OpText, Selector: selector})
}

// ExecuteScript implements harness.Console.
func (c *Client) ExecuteScript(ctx context.Context, code string) error {
	_, err := c.call(ctx, Request{Op: OpExecuteScript, Code: code})
	return err
}

// AddFile implements harness.Files.
func (c *Client) AddFile(ctx context.Context, path, content string) error {
	_, err := c.call(ctx, Request{Op: OpAddFile, Path: path, Content: content})
	return err
}

// OpenFile implements harness.Files.
func (c *Client) OpenFile(ctx context.Context, path string) error {
	_, err := c.call(ctx, Request{Op: OpOpenFile, Path: path})
	return err
}

// Reset implements harness.Resetter.
func (c *Client) Reset(ctx context.Context) error {
	_, err := c.call(ctx, Request{Op: OpReset})
	return err
}

// Close sends a close frame and drops the connection. The remote target
// itself stays up.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
