package main

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var (
	errClientClosed = errors.New("client closed")
	errSlowConsumer = errors.New("send buffer full")
)

// Client is one websocket connection. It implements Sender.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan Frame
	done       chan struct{}
	closeOnce  sync.Once
	id         int
	traceID    string
	remoteAddr string
	codec      Codec
	limiter    *rate.Limiter
}

// NewClient creates a Client. The caller registers it with Hub.Join and then
// starts both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, codec Codec) *Client {
	limit := rate.Inf
	if hub.cfg.MessageRate > 0 {
		limit = rate.Limit(hub.cfg.MessageRate)
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan Frame, hub.cfg.SendBuffer),
		done:       make(chan struct{}),
		traceID:    newTraceID(),
		remoteAddr: remoteAddr,
		codec:      codec,
		limiter:    rate.NewLimiter(limit, hub.cfg.MessageBurst),
	}
}

// Codec returns the wire codec negotiated at upgrade
func (c *Client) Codec() Codec {
	return c.codec
}

// SendFrame queues f without blocking
func (c *Client) SendFrame(f Frame) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close tears down the connection. Both pumps exit afterwards.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ReadPump reads messages until the transport closes, then removes the session.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Leave(c.id)
		c.hub.Release(c.remoteAddr)
		c.Close()
		log.Printf("[%s] player %d disconnected", c.traceID, c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	limited := false
	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[%s] ws error: %v", c.traceID, err)
			}
			return
		}

		if !c.limiter.Allow() {
			if !limited {
				log.Printf("[%s] player %d: rate limit exceeded, dropping messages", c.traceID, c.id)
				limited = true
			}
			continue
		}
		limited = false

		if msgType != websocket.TextMessage {
			log.Printf("[%s] player %d: ignoring non-text frame", c.traceID, c.id)
			continue
		}
		if err := c.hub.Dispatch(c.id, message); err != nil {
			log.Printf("[%s] player %d: %v", c.traceID, c.id, err)
		}
	}
}

// WritePump writes queued frames and pings to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msgType := websocket.TextMessage
			if f.Binary {
				msgType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(msgType, f.Data); err != nil {
				log.Printf("[%s] write error: %v", c.traceID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
