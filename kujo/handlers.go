package kujo

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nyiyui.ca/hato/shingo/game"
	"nyiyui.ca/hato/shingo/hof"
)

const defaultTopN = 10

type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type HallOfFameResponse struct {
	Station string      `json:"station,omitempty"`
	Entries []hof.Entry `json:"entries"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.S().Warnf("kujo: encode response: %s", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg,
		Details: details,
	})
}

// writeCommand answers a command with the resulting snapshot, or the reason it failed.
func (s *Server) writeCommand(w http.ResponseWriter, err error) {
	var rejected game.Rejected
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.g.Snapshot())
	case errors.Is(err, game.ErrOver):
		writeError(w, http.StatusGone, "game over", nil)
	case errors.As(err, &rejected):
		writeError(w, http.StatusConflict, "command rejected", map[string]interface{}{
			"command": rejected.Command,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
	}
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.g.Snapshot())
}

func (s *Server) getMap(w http.ResponseWriter, r *http.Request) {
	data, err := s.g.Map().GeoJSON().MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render map", map[string]interface{}{
			"message": err.Error(),
		})
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// getHallOfFame handles GET /hall-of-fame?station=&n=
// station defaults to the station being played; "*" lists every station.
func (s *Server) getHallOfFame(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "no hall of fame", nil)
		return
	}
	q := r.URL.Query()
	stationName := q.Get("station")
	switch stationName {
	case "":
		stationName = s.g.Map().Name
	case "*":
		stationName = ""
	}
	n := defaultTopN
	if raw := q.Get("n"); raw != "" {
		var err error
		n, err = strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid n", map[string]interface{}{
				"n": raw,
			})
			return
		}
	}
	entries, err := s.store.Top(r.Context(), stationName, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to retrieve hall of fame", map[string]interface{}{
			"message": err.Error(),
		})
		return
	}
	if entries == nil {
		entries = []hof.Entry{}
	}
	writeJSON(w, http.StatusOK, HallOfFameResponse{
		Station: stationName,
		Entries: entries,
	})
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request) {
	s.writeCommand(w, s.g.Toggle(chi.URLParam(r, "id")))
}

func (s *Server) signal(w http.ResponseWriter, r *http.Request) {
	id, edge := chi.URLParam(r, "id"), chi.URLParam(r, "edge")
	if chi.URLParam(r, "action") == "lock" {
		s.writeCommand(w, s.g.LockSignal(id, edge))
	} else {
		s.writeCommand(w, s.g.UnlockSignal(id, edge))
	}
}

func (s *Server) section(w http.ResponseWriter, r *http.Request) {
	edge := chi.URLParam(r, "edge")
	if chi.URLParam(r, "action") == "lock" {
		s.writeCommand(w, s.g.LockSection(edge))
	} else {
		s.writeCommand(w, s.g.UnlockSection(edge))
	}
}

func (s *Server) train(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch chi.URLParam(r, "action") {
	case "start":
		s.writeCommand(w, s.g.StartTrain(id))
	case "stop":
		s.writeCommand(w, s.g.StopTrain(id))
	case "revert":
		s.writeCommand(w, s.g.RevertTrain(id))
	}
}

func (s *Server) autoLock(w http.ResponseWriter, r *http.Request) {
	s.writeCommand(w, s.g.SetAutoLock(chi.URLParam(r, "on") == "on"))
}

func (s *Server) frequency(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "f")
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid frequency", map[string]interface{}{
			"frequency": raw,
		})
		return
	}
	s.writeCommand(w, s.g.SetFrequency(f))
}
