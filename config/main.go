// Package config loads station definitions and the runtime configuration of a game.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"nyiyui.ca/hato/shingo/layout"
	"nyiyui.ca/hato/shingo/route"
)

// Station is a station definition as stored in a JSON file.
type Station struct {
	Name   string             `json:"name"`
	Map    layout.StationData `json:"map"`
	Routes []route.Data       `json:"routes"`
}

// LoadStation reads a station definition from a JSON file.
func LoadStation(path string) (Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return Station{}, fmt.Errorf("open station: %w", err)
	}
	defer f.Close()
	s, err := ParseStation(f)
	if err != nil {
		return Station{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ParseStation(r io.Reader) (Station, error) {
	var s Station
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Station{}, fmt.Errorf("parse station: %w", err)
	}
	return s, nil
}

// Build checks every reference of the definition and returns the topology and its
// devices.
func (s Station) Build() (*layout.StationMap, *route.Set, error) {
	data := s.Map
	if data.Name == "" {
		data.Name = s.Name
	}
	m, err := layout.New(data)
	if err != nil {
		return nil, nil, fmt.Errorf("station %s: %w", s.Name, err)
	}
	routes, err := route.NewSet(m, s.Routes)
	if err != nil {
		return nil, nil, fmt.Errorf("station %s: %w", s.Name, err)
	}
	return m, routes, nil
}

// MustBuild is Build, but panics on error.
func (s Station) MustBuild() (*layout.StationMap, *route.Set) {
	m, routes, err := s.Build()
	if err != nil {
		panic(err)
	}
	return m, routes
}
