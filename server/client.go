package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rafall04/cctv-sub000/playback"
	"github.com/rafall04/cctv-sub000/visibility"
)

// newClient builds a tile and its playback controller. The caller registers
// it and starts the pumps.
func newClient(sm *StreamManager, stream *Stream, conn *websocket.Conn, opts TileOptions) *Client {
	id := uuid.New().String()
	c := &Client{
		id:          id,
		streamID:    stream.streamID,
		conn:        conn,
		send:        make(chan []byte, sm.cfg.ClientBuffer),
		control:     make(chan []byte, ControlBufferSize),
		manager:     sm,
		visible:     true,
		tier:        opts.Tier,
		connectedAt: time.Now(),
		log: sm.log.With().
			Str("stream", stream.streamID).
			Str("tile", id).
			Logger(),
	}
	c.sink = &tileSink{client: c, src: stream.rtspURL}
	c.controller = playback.New(c.sink, stream.rtspURL,
		playback.WithTier(opts.Tier),
		playback.WithPauseDelay(opts.PauseDelay),
		playback.WithAutoResume(opts.AutoResume),
		playback.WithScheduler(sm.scheduler),
		playback.WithLogger(c.log),
		playback.WithStatusHandler(c.onStatusChange),
	)
	return c
}

// readPump handles incoming WebSocket messages from the tile
func (c *Client) readPump() {
	defer func() {
		c.manager.visibility.Unobserve(c.id)
		c.controller.Destroy()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(WebSocketReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketReadDeadline))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket error")
			}
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Debug().Err(err).Msg("ignoring malformed control message")
			continue
		}
		c.handleControl(msg)
	}
}

func (c *Client) handleControl(msg controlMessage) {
	switch msg.Type {
	case "play":
		c.controller.Resume()
	case "pause":
		c.controller.Pause()
	case "visibility":
		c.manager.feed.Report(visibility.Entry{
			Element:      c.id,
			Intersecting: msg.Intersecting,
			Ratio:        msg.Ratio,
		})
	case "page":
		// A hidden browser tab hides every tile on it.
		ratio := 0.0
		if msg.Visible {
			ratio = 1
		}
		c.manager.feed.Report(visibility.Entry{
			Element:      c.id,
			Intersecting: msg.Visible,
			Ratio:        ratio,
		})
	default:
		c.log.Debug().Str("type", msg.Type).Msg("unknown control message")
	}
}

// writePump handles outgoing frames and status messages to the tile
func (c *Client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteDeadline))
			if !ok {
				// Channel closed, send close message and exit
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				c.log.Debug().Err(err).Msg("write frame")
				return
			}

		case msg := <-c.control:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug().Err(err).Msg("write status")
				return
			}

		case <-ticker.C:
			if c.isClosed() {
				return
			}

			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver forwards a frame unless the tile is paused or its buffer is full.
// The first frame a loading tile receives marks it as playing.
func (c *Client) deliver(frame []byte) {
	if c.sink.Paused() {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- frame:
	default:
		c.mu.Unlock()
		c.log.Debug().Msg("tile buffer full, skipping frame")
		return
	}
	c.mu.Unlock()

	if c.controller.Status() == playback.StatusLoading {
		c.markLoaded()
	}
}

// setVisible records the tile's last reported visibility and forwards it to
// the controller.
func (c *Client) setVisible(visible bool) {
	c.visMu.Lock()
	defer c.visMu.Unlock()
	c.visible = visible
	c.controller.SetVisibility(visible)
}

// markLoaded moves a loading tile to playing. A hidden report received while
// loading is replayed so the tile still pauses after its delay.
func (c *Client) markLoaded() {
	c.visMu.Lock()
	defer c.visMu.Unlock()
	if c.controller.MarkLoaded() && !c.visible {
		c.controller.SetVisibility(false)
	}
}

func (c *Client) onStatusChange(status playback.Status) {
	c.log.Debug().Stringer("status", status).Msg("tile status")

	msg, err := json.Marshal(statusMessage{
		Type:     "status",
		Tile:     c.id,
		StreamID: c.streamID,
		Status:   status,
	})
	if err != nil {
		c.log.Error().Err(err).Msg("encode status")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.control <- msg:
	default:
		c.log.Warn().Stringer("status", status).Msg("control buffer full, dropping status")
	}
}

// close marks the tile closed and stops its write pump. It reports whether
// this call did the closing.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) info() TileInfo {
	return TileInfo{
		ID:                 c.id,
		StreamID:           c.streamID,
		Status:             c.controller.Status(),
		Tier:               c.tier,
		PauseDelayMs:       c.controller.PauseDelay().Milliseconds(),
		PausedByVisibility: c.controller.PausedByVisibility(),
		ConnectedAt:        c.connectedAt,
	}
}
