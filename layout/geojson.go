package layout

import (
	geojson "github.com/paulmach/go.geojson"
)

// curveSampleStep is the maximum distance between sampled points of a curve.
const curveSampleStep = 5.0

// GeoJSON returns the station as a feature collection: one LineString per edge and one
// Point per node. Coordinates are in metres on the station plane.
func (m *StationMap) GeoJSON() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, e := range m.Edges() {
		ls := e.Sample(curveSampleStep)
		pts := make([][]float64, len(ls))
		for i, p := range ls {
			pts[i] = []float64{p[0], p[1]}
		}
		f := geojson.NewLineStringFeature(pts)
		f.ID = e.ID
		f.SetProperty("type", "edge")
		f.SetProperty("kind", e.Kind.String())
		f.SetProperty("length", e.Length)
		f.SetProperty("node0", e.Node0)
		f.SetProperty("node1", e.Node1)
		fc.AddFeature(f)
	}
	for _, n := range m.Nodes() {
		f := geojson.NewPointFeature([]float64{n.Location[0], n.Location[1]})
		f.ID = n.ID
		f.SetProperty("type", "node")
		f.SetProperty("edges", n.Edges)
		fc.AddFeature(f)
	}
	return fc
}
