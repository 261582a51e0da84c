// Package kujo serves a running game over HTTP: commands as POST routes, snapshots and
// sound events as server-sent events.
package kujo

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/r3labs/sse/v2"
	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/game"
	"nyiyui.ca/hato/shingo/hof"
)

const (
	StreamSnapshot = "snapshot"
	StreamSound    = "sound"
)

type Server struct {
	g     *game.Game
	store hof.Store
	s     *sse.Server
	r     chi.Router

	done      chan struct{}
	forwarded sync.WaitGroup
	closeOnce sync.Once
}

// NewServer starts forwarding the events of g. store may be nil.
func NewServer(g *game.Game, store hof.Store) *Server {
	s := &Server{
		g:     g,
		store: store,
		s:     sse.New(),
		done:  make(chan struct{}),
	}
	s.s.AutoReplay = false
	s.s.CreateStream(StreamSnapshot)
	s.s.CreateStream(StreamSound)
	s.r = s.routes()
	s.forwarded.Add(2)
	go forward(s, StreamSnapshot, g.SnapshotMux.Subscribe, g.SnapshotMux.Unsubscribe)
	go forward(s, StreamSound, g.SoundMux.Subscribe, g.SoundMux.Unsubscribe)
	return s
}

// forward publishes the events of one multiplexer until the server is closed.
func forward[E any](s *Server, stream string, subscribe func(string, chan E), unsubscribe func(chan E)) {
	defer s.forwarded.Done()
	ch := make(chan E, 16)
	subscribe("kujo "+stream, ch)
	defer unsubscribe(ch)
	for {
		var e E
		select {
		case <-s.done:
			return
		case e = <-ch:
		}
		data, err := json.Marshal(e)
		if err != nil {
			zap.S().Errorf("kujo: marshal %s: %s", stream, err)
			continue
		}
		s.s.TryPublish(stream, &sse.Event{
			Data: data,
		})
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	// ?stream=snapshot or ?stream=sound
	r.Get("/events", s.s.ServeHTTP)
	r.Get("/snapshot", s.getSnapshot)
	r.Get("/map.geojson", s.getMap)
	r.Get("/hall-of-fame", s.getHallOfFame)
	r.Post("/switches/{id}/toggle", s.toggle)
	r.Post("/signals/{id}/{edge}/{action:lock|unlock}", s.signal)
	r.Post("/sections/{edge}/{action:lock|unlock}", s.section)
	r.Post("/trains/{id}/{action:start|stop|revert}", s.train)
	r.Post("/autolock/{on:on|off}", s.autoLock)
	r.Post("/frequency/{f}", s.frequency)
	return r
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Close unsubscribes from the game and ends the event streams. It is safe to call more
// than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.forwarded.Wait()
		s.s.Close()
	})
}
