// Package hof keeps the hall of fame: the results of finished games.
package hof

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"nyiyui.ca/hato/shingo/station"
)

type Entry struct {
	ID          uuid.UUID           `json:"id"`
	Player      string              `json:"player"`
	Station     string              `json:"station"`
	ElapsedTime float64             `json:"elapsedTime"`
	Frequency   float64             `json:"frequency"`
	Performance station.Performance `json:"performance"`
	// RightPerHour is the ranking key.
	RightPerHour float64   `json:"rightPerHour"`
	RecordedAt   time.Time `json:"recordedAt"`
}

func NewEntry(player, stationName string, frequency float64, p station.Performance, now time.Time) Entry {
	return Entry{
		ID:           uuid.New(),
		Player:       player,
		Station:      stationName,
		ElapsedTime:  p.ElapsedTime,
		Frequency:    frequency,
		Performance:  p,
		RightPerHour: p.RightOutgoingPerHour(),
		RecordedAt:   now,
	}
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s@%s %.1f/h (%s)", e.ID, e.Player, e.Station, e.RightPerHour, e.Performance)
}

type Store interface {
	Add(ctx context.Context, e Entry) error
	// Top returns the n best entries of a station, or of every station when stationName is
	// empty. Entries rank by RightPerHour, then older first, then by id.
	Top(ctx context.Context, stationName string, n int) ([]Entry, error)
	Close() error
}

// Open opens a store of the given kind ("bunt" or "sqlite") at path.
func Open(ctx context.Context, kind, path string) (Store, error) {
	switch kind {
	case "bunt":
		return OpenBunt(path)
	case "sqlite":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}
