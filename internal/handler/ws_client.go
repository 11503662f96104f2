package handler

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/club-collab-api/internal/dto"
	"github.com/noah-isme/club-collab-api/internal/models"
)

// Client is one websocket connection and its presence footprint. All
// writes to the connection go through the send channel; the write
// pump is the only goroutine touching the socket for output.
type Client struct {
	conn          *websocket.Conn
	send          chan []byte
	participantID int64
	role          models.Role
	logger        *zap.Logger

	writeTimeout time.Duration
	pongTimeout  time.Duration

	mu       sync.Mutex
	classIDs map[int64]struct{}
	teamIDs  map[int64]struct{}
	closed   bool
}

func newClient(conn *websocket.Conn, claims *models.JWTClaims, sendBuffer int, writeTimeout, pongTimeout time.Duration, logger *zap.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	return &Client{
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		participantID: claims.ParticipantID,
		role:          claims.Role,
		logger:        logger,
		writeTimeout:  writeTimeout,
		pongTimeout:   pongTimeout,
		classIDs:      make(map[int64]struct{}),
		teamIDs:       make(map[int64]struct{}),
	}
}

// Send queues a pre-encoded frame. A slow consumer loses frames
// rather than stalling the fan-out.
func (c *Client) Send(raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("dropping frame for slow client", zap.Int64("participant_id", c.participantID))
	}
}

// SendFrame encodes and queues a server frame.
func (c *Client) SendFrame(frame dto.ServerFrame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("frame encode failed", zap.Error(err))
		return
	}
	c.Send(raw)
}

// SendError reports a failed action back to this client only.
func (c *Client) SendError(code, message string) {
	c.SendFrame(dto.ServerFrame{Kind: dto.FrameError, Payload: dto.ErrorFrame{Code: code, Message: message}})
}

func (c *Client) trackClass(classID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classIDs[classID] = struct{}{}
}

func (c *Client) untrackClass(classID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.classIDs, classID)
}

func (c *Client) trackTeam(teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teamIDs[teamID] = struct{}{}
}

func (c *Client) untrackTeam(teamID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.teamIDs, teamID)
}

func (c *Client) teams() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int64, 0, len(c.teamIDs))
	for id := range c.teamIDs {
		ids = append(ids, id)
	}
	return ids
}

// writePump drains the send channel to the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	pingInterval := c.pongTimeout * 9 / 10
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.send)
}
