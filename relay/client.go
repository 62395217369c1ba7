package relay

import (
	"ai-live-chat/contract"
	"ai-live-chat/store"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const terminateTimeout = 5 * time.Second

// Client is a middleman between one websocket and the store.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	address string
	session *store.Session

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	send   chan []byte
	done   chan struct{}
	closed bool
	subs   map[uint64]contract.Subscription
}

// readPump handles frames until the socket fails, then tears the
// connection down and fires the disconnect removals.
func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("Socket dropped", "address", c.address, "error", err)
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.hub.metrics.Failures.WithLabelValues("decode", CodeInvalid).Inc()
			c.reply(nack(0, CodeInvalid, err))
			continue
		}
		c.reply(c.handle(frame))
	}
}

// writePump owns every write on the socket.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handle(frame Frame) Frame {
	c.hub.metrics.Frames.WithLabelValues(frame.Op).Inc()
	ctx := c.ctx

	switch frame.Op {
	case OpPush, OpSet, OpRemove:
		if frame.Collection == "" {
			return c.fail(frame, CodeInvalid, fmt.Errorf("collection is required"))
		}
		if !c.hub.limiter.Allow(c.remoteHost()) {
			c.hub.metrics.RateLimited.Inc()
			return c.fail(frame, CodeRateLimited, fmt.Errorf("too many writes"))
		}
	}

	switch frame.Op {
	case OpPush:
		id, err := c.session.Push(ctx, frame.Collection, frame.Record)
		if err != nil {
			return c.fail(frame, CodeUnavailable, err)
		}
		reply := ack(frame.ReqID)
		reply.ID = id
		return reply
	case OpSet:
		if frame.ID == "" {
			return c.fail(frame, CodeInvalid, fmt.Errorf("id is required"))
		}
		if err := c.session.Set(ctx, frame.Collection, frame.ID, frame.Record); err != nil {
			return c.fail(frame, CodeUnavailable, err)
		}
	case OpRemove:
		if err := c.session.Remove(ctx, frame.Collection, frame.ID); err != nil {
			return c.fail(frame, CodeUnavailable, err)
		}
	case OpList:
		snapshot, err := c.session.List(ctx, frame.Collection)
		if err != nil {
			return c.fail(frame, CodeUnavailable, err)
		}
		reply := ack(frame.ReqID)
		reply.Snapshot = snapshot
		return reply
	case OpSubscribe:
		return c.subscribe(frame)
	case OpUnsubscribe:
		c.unsubscribe(frame.SubID)
	case OpOnDisconnectRemove:
		if err := c.session.OnDisconnectRemove(ctx, frame.Collection, frame.ID); err != nil {
			return c.fail(frame, CodeUnavailable, err)
		}
	default:
		return c.fail(frame, CodeInvalid, fmt.Errorf("unknown op %q", frame.Op))
	}
	return ack(frame.ReqID)
}

func (c *Client) subscribe(frame Frame) Frame {
	if frame.SubID == 0 {
		return c.fail(frame, CodeInvalid, fmt.Errorf("subId is required"))
	}
	c.mu.Lock()
	_, exists := c.subs[frame.SubID]
	c.mu.Unlock()
	if exists {
		return c.fail(frame, CodeInvalid, fmt.Errorf("subId %d already used", frame.SubID))
	}

	subID := frame.SubID
	sub, err := c.session.Subscribe(c.ctx, frame.Collection,
		func(snapshot contract.Snapshot) {
			c.reply(Frame{Op: OpSnapshot, SubID: subID, Collection: frame.Collection, Snapshot: snapshot})
		},
		func(err error) {
			c.reply(Frame{Op: OpSubError, SubID: subID, Collection: frame.Collection, Error: err.Error()})
		})
	if err != nil {
		return c.fail(frame, CodeUnavailable, err)
	}

	c.mu.Lock()
	c.subs[subID] = sub
	c.mu.Unlock()
	reply := ack(frame.ReqID)
	reply.SubID = subID
	return reply
}

func (c *Client) unsubscribe(subID uint64) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	delete(c.subs, subID)
	c.mu.Unlock()
	if ok {
		sub.Unsubscribe()
	}
}

func (c *Client) fail(frame Frame, code string, err error) Frame {
	c.hub.metrics.Failures.WithLabelValues(frame.Op, code).Inc()
	c.hub.log.Debug("Request failed", "op", frame.Op, "code", code, "error", err)
	return nack(frame.ReqID, code, err)
}

// reply queues a frame. A client too slow to drain its buffer is dropped.
func (c *Client) reply(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.hub.log.Error("Unable to encode frame", "op", frame.Op, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.log.Warn("Client too slow, dropping", "address", c.address)
		c.closeLocked()
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	// unblocks readPump
	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *Client) teardown() {
	c.close()
	c.cancel()

	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[uint64]contract.Subscription)
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Unsubscribe()
	}

	ctx, cancel := context.WithTimeout(context.Background(), terminateTimeout)
	defer cancel()
	registered := c.session.Registered()
	if err := c.session.Terminate(ctx); err != nil {
		c.hub.log.Warn("Disconnect removals failed", "address", c.address, "error", err)
	} else {
		c.hub.metrics.Removals.Add(float64(registered))
	}
	c.hub.unregister(c)
}

func (c *Client) remoteHost() string {
	host, _, err := net.SplitHostPort(c.address)
	if err != nil {
		return c.address
	}
	return host
}
