package geo

import (
	"math"
	"testing"

	"waycart/internal/types"
)

func TestDistanceKm_KnownDistances(t *testing.T) {
	tests := []struct {
		name      string
		a, b      types.Coordinate
		wantKm    float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         types.Coordinate{Lat: 18.5204, Lng: 73.8567},
			b:         types.Coordinate{Lat: 18.5204, Lng: 73.8567},
			wantKm:    0,
			tolerance: 0.001,
		},
		{
			name:      "Pune station to Shivajinagar (~3km)",
			a:         types.Coordinate{Lat: 18.5286, Lng: 73.8742},
			b:         types.Coordinate{Lat: 18.5314, Lng: 73.8446},
			wantKm:    3.1,
			tolerance: 0.5,
		},
		{
			name:      "New York to Los Angeles (~3944km)",
			a:         types.Coordinate{Lat: 40.7128, Lng: -74.0060},
			b:         types.Coordinate{Lat: 34.0522, Lng: -118.2437},
			wantKm:    3944,
			tolerance: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.a, tt.b)
			if math.Abs(got-tt.wantKm) > tt.tolerance {
				t.Errorf("DistanceKm() = %f, want %f (±%f)", got, tt.wantKm, tt.tolerance)
			}
		})
	}
}

func TestDistanceKm_Symmetry(t *testing.T) {
	a := types.Coordinate{Lat: 18.5, Lng: 73.8}
	b := types.Coordinate{Lat: 19.2, Lng: 74.1}
	d1 := DistanceKm(a, b)
	d2 := DistanceKm(b, a)
	if math.Abs(d1-d2) > 0.0001 {
		t.Errorf("distance is not symmetric: %f vs %f", d1, d2)
	}
}

func TestDetourCostKm(t *testing.T) {
	start := types.Coordinate{Lat: 18.5204, Lng: 73.8567}
	end := types.Coordinate{Lat: 18.5300, Lng: 73.8700}

	// A point on the segment costs (almost) nothing.
	onPath := types.Coordinate{Lat: 18.5252, Lng: 73.8634}
	if cost := DetourCostKm(start, end, onPath); cost > 0.05 {
		t.Errorf("on-path detour cost = %f, want ~0", cost)
	}

	// A point far off the route costs a lot.
	far := types.Coordinate{Lat: 19.0, Lng: 74.5}
	if cost := DetourCostKm(start, end, far); cost < 50 {
		t.Errorf("far detour cost = %f, want > 50", cost)
	}

	// Visiting an endpoint itself is free.
	if cost := DetourCostKm(start, end, start); cost > 0.0001 {
		t.Errorf("detour via start = %f, want 0", cost)
	}

	// Never negative.
	for _, via := range []types.Coordinate{start, end, onPath, far} {
		if cost := DetourCostKm(start, end, via); cost < 0 {
			t.Errorf("negative detour cost %f for %+v", cost, via)
		}
	}
}

func TestMidpoint(t *testing.T) {
	a := types.Coordinate{Lat: 18.0, Lng: 73.0}
	b := types.Coordinate{Lat: 19.0, Lng: 74.0}
	m := Midpoint(a, b)
	if m.Lat != 18.5 || m.Lng != 73.5 {
		t.Errorf("Midpoint() = %+v, want {18.5 73.5}", m)
	}
}
