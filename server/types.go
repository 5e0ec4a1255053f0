package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/rafall04/cctv-sub000/config"
	"github.com/rafall04/cctv-sub000/playback"
	"github.com/rafall04/cctv-sub000/schedule"
	"github.com/rafall04/cctv-sub000/tier"
	"github.com/rafall04/cctv-sub000/visibility"
)

// StreamManager manages multiple RTSP streams with single ingest per camera
// and the viewer tiles watching them.
type StreamManager struct {
	streams map[string]*Stream
	clients map[string]map[string]*Client
	mu      sync.RWMutex

	cfg       config.StreamConfig
	playback  config.PlaybackConfig
	hostTier  tier.Tier
	source    FrameSource
	scheduler schedule.Scheduler

	visibility *visibility.Multiplexer
	feed       *visibility.Feed

	log zerolog.Logger
}

// Stream represents a single RTSP stream with multiple consumers
type Stream struct {
	rtspURL        string
	streamID       string
	width          int
	height         int
	frameBuffer    chan []byte
	clients        map[string]*Client
	clientsMu      sync.RWMutex
	isRunning      bool
	stopped        bool
	cancelFunc     context.CancelFunc
	startedAt      time.Time
	lastFrameTime  time.Time
	frameCount     int64
	restarts       int
	lastError      error
	mu             sync.RWMutex
	healthStopChan chan struct{}
}

// Client is one viewer tile consuming a stream over a WebSocket.
type Client struct {
	id          string
	streamID    string
	conn        *websocket.Conn
	send        chan []byte
	control     chan []byte
	manager     *StreamManager
	closed      bool
	mu          sync.Mutex
	controller  *playback.Controller
	sink        *tileSink
	visMu       sync.Mutex
	visible     bool
	tier        tier.Tier
	connectedAt time.Time
	log         zerolog.Logger
}

// TileOptions are the per tile playback settings a viewer asks for.
type TileOptions struct {
	Tier       tier.Tier
	PauseDelay time.Duration
	AutoResume bool
}

// controlMessage is a JSON text message sent by a viewer tile.
type controlMessage struct {
	Type         string  `json:"type"`
	Intersecting bool    `json:"intersecting"`
	Ratio        float64 `json:"ratio"`
	Visible      bool    `json:"visible"`
}

// statusMessage is pushed to a viewer tile on every playback transition.
type statusMessage struct {
	Type     string          `json:"type"`
	Tile     string          `json:"tile"`
	StreamID string          `json:"stream_id"`
	Status   playback.Status `json:"status"`
}

// TileInfo describes a connected tile for the dashboard.
type TileInfo struct {
	ID                 string          `json:"id"`
	StreamID           string          `json:"stream_id"`
	Status             playback.Status `json:"status"`
	Tier               tier.Tier       `json:"tier"`
	PauseDelayMs       int64           `json:"pause_delay_ms"`
	PausedByVisibility bool            `json:"paused_by_visibility"`
	ConnectedAt        time.Time       `json:"connected_at"`
}
