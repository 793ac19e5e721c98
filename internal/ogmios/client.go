package ogmios

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/govsync/internal/ledger"
)

// DefaultPipelineDepth is the number of nextBlock requests kept in flight.
const DefaultPipelineDepth = 100

// Client is a chain-sync session over one websocket connection.
//
// Thread-safety model:
//   - FindIntersection and Next must be called from one goroutine
//   - Close is safe from any goroutine
type Client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	depth   int
	pending []string // ids of nextBlock requests in flight, oldest first
	started bool
}

type options struct {
	logger *slog.Logger
	depth  int
	dialer *websocket.Dialer
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the client logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPipelineDepth sets how many nextBlock requests stay in flight.
func WithPipelineDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.depth = n
		}
	}
}

// WithDialer sets the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// Dial connects to the Ogmios websocket at url.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	o := options{
		logger: slog.Default(),
		depth:  DefaultPipelineDepth,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	conn, _, err := o.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, transport("dial", err)
	}
	o.logger.Info("connected to ogmios", "url", url)
	return &Client{conn: conn, logger: o.logger, depth: o.depth}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// FindIntersection asks the node for the newest of points on its chain.
// Origin is always offered last, so an intersection is always found.
// Returns the intersection, nil for origin.
func (c *Client) FindIntersection(ctx context.Context, points []ledger.Point) (*ledger.Point, error) {
	if c.started {
		return nil, errors.New("ogmios: intersection must be found before the first block")
	}
	id, err := c.send(methodFindIntersection, map[string]any{"points": encodePoints(points)})
	if err != nil {
		return nil, err
	}
	resp, err := c.receive(ctx, id)
	if err != nil {
		return nil, err
	}
	var res intersectionResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return nil, transport(methodFindIntersection, err)
	}
	point, err := decodePoint(res.Intersection)
	if err != nil {
		return nil, transport(methodFindIntersection, err)
	}
	tip, err := decodeTip(res.Tip)
	if err != nil {
		return nil, transport(methodFindIntersection, err)
	}
	at := "origin"
	if point != nil {
		at = point.String()
	}
	c.logger.Info("intersection found", "point", at, "tip_slot", tip.Slot)
	return point, nil
}

// Next returns the next chain-sync event. The first call fills the
// request window; every call then tops it up by one.
func (c *Client) Next(ctx context.Context) (Event, error) {
	if !c.started {
		c.started = true
		for range c.depth {
			if err := c.requestNext(); err != nil {
				return nil, err
			}
		}
	}
	if len(c.pending) == 0 {
		return nil, transport(methodNextBlock, errors.New("no request in flight"))
	}
	id := c.pending[0]
	c.pending = c.pending[1:]
	resp, err := c.receive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.requestNext(); err != nil {
		return nil, err
	}

	var res nextBlockResult
	if err := json.Unmarshal(resp.Result, &res); err != nil {
		return nil, transport(methodNextBlock, err)
	}
	tip, err := decodeTip(res.Tip)
	if err != nil {
		return nil, transport(methodNextBlock, err)
	}
	switch res.Direction {
	case "forward":
		if res.Block == nil {
			return nil, transport(methodNextBlock, errors.New("forward without block"))
		}
		blk, err := convertBlock(res.Block)
		if err != nil {
			return nil, fmt.Errorf("ogmios block %s: %w", res.Block.ID, err)
		}
		return RollForward{Tip: tip, Block: blk}, nil
	case "backward":
		point, err := decodePoint(res.Point)
		if err != nil {
			return nil, transport(methodNextBlock, err)
		}
		return RollBackward{Tip: tip, Point: point}, nil
	}
	return nil, transport(methodNextBlock, fmt.Errorf("unknown direction %q", res.Direction))
}

func (c *Client) requestNext() error {
	id, err := c.send(methodNextBlock, nil)
	if err != nil {
		return err
	}
	c.pending = append(c.pending, id)
	return nil
}

func (c *Client) send(method string, params any) (string, error) {
	id := uuid.NewString()
	msg, err := json.Marshal(request{JSONRPC: "2.0", Method: method, Params: params, ID: id})
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", method, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return "", transport("write "+method, err)
	}
	return id, nil
}

// receive reads the response to the request with id. Cancelling ctx
// unblocks the read and leaves the connection unusable.
func (c *Client) receive(ctx context.Context, id string) (*response, error) {
	stop := context.AfterFunc(ctx, func() {
		c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, transport("read", err)
	}
	var resp response
	if err := json.Unmarshal(msg, &resp); err != nil {
		return nil, transport("decode response", err)
	}
	if resp.Error != nil {
		return nil, transport(resp.Method, resp.Error)
	}
	if resp.ID != id {
		return nil, transport(resp.Method, fmt.Errorf("response id %q, want %q", resp.ID, id))
	}
	return &resp, nil
}
