package server

import (
	"errors"
	"sync"
)

var errTileClosed = errors.New("tile closed")

// tileSink gates frame forwarding to one tile. Pausing it stops delivery;
// nothing is torn down.
type tileSink struct {
	mu     sync.Mutex
	paused bool
	src    string
	client *Client
}

func (s *tileSink) Play() error {
	if s.client.isClosed() {
		return errTileClosed
	}
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	return nil
}

func (s *tileSink) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Load restarts delivery from the next buffered frame.
func (s *tileSink) Load() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *tileSink) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func (s *tileSink) Src() string {
	return s.src
}

// subscription is the tile's claim on the shared ingest. Destroying it
// detaches the tile from the stream.
type subscription struct {
	manager *StreamManager
	client  *Client
	once    sync.Once
}

func (s *subscription) Destroy() {
	s.once.Do(func() {
		s.manager.RemoveClient(s.client)
	})
}
