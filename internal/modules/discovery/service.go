// README: Detour-cost candidate search over the vendor directory, with caching.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"waycart/internal/cache"
	"waycart/internal/config"
	"waycart/internal/geo"
	"waycart/internal/modules/vendor"
	"waycart/internal/types"
)

var ErrBadRequest = errors.New("bad request")

// vendorFinder is the directory surface the search needs; tests supply a stub.
type vendorFinder interface {
	FindWithinRadius(ctx context.Context, center types.Coordinate, radiusKm float64, categories []vendor.Category) ([]vendor.Vendor, error)
}

type Service struct {
	vendors vendorFinder
	cache   *cache.Cache // may be nil; searches then always hit the directory
	cfg     config.DiscoveryConfig
}

func NewService(vendors vendorFinder, c *cache.Cache, cfg config.DiscoveryConfig) *Service {
	return &Service{vendors: vendors, cache: c, cfg: cfg}
}

// FindCandidates returns the vendors whose detour cost for the route is
// within prefs.MaxDetourKm, ascending by cost. An empty result is a normal
// outcome, not an error.
func (s *Service) FindCandidates(ctx context.Context, route Route, prefs Preferences) ([]Candidate, error) {
	if !route.Valid() || prefs.MaxDetourKm <= 0 {
		return nil, ErrBadRequest
	}

	key := cacheKey(route, prefs)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var cached []Candidate
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	direct := geo.DistanceKm(route.Start, route.End)

	// A vendor with detour cost <= D can be at most direct/2 + D from the
	// route midpoint; the slack only covers midpoint approximation error.
	outerRadius := direct/2 + prefs.MaxDetourKm + s.cfg.RadiusSlackKm
	pool, err := s.vendors.FindWithinRadius(ctx, geo.Midpoint(route.Start, route.End), outerRadius, prefs.Categories)
	if err != nil {
		return nil, err
	}

	candidates := rank(route, prefs, pool)

	if s.cache != nil {
		if raw, err := json.Marshal(candidates); err == nil {
			// Best effort: a failed cache write never fails the search.
			_ = s.cache.Put(ctx, key, raw, s.cfg.CacheTTL)
		}
	}
	return candidates, nil
}

func rank(route Route, prefs Preferences, pool []vendor.Vendor) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, v := range pool {
		if v.Location == nil {
			continue
		}
		cost := geo.DetourCostKm(route.Start, route.End, *v.Location)
		if cost <= prefs.MaxDetourKm {
			candidates = append(candidates, Candidate{Vendor: v, DetourKm: cost})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DetourKm != b.DetourKm {
			return a.DetourKm < b.DetourKm
		}
		if prefs.SingleVendorPreferred && a.Vendor.GroceryEnabled != b.Vendor.GroceryEnabled {
			return a.Vendor.GroceryEnabled
		}
		return a.Vendor.ID < b.Vendor.ID
	})
	return candidates
}

func cacheKey(route Route, prefs Preferences) string {
	cats := make([]string, len(prefs.Categories))
	for i, c := range prefs.Categories {
		cats[i] = string(c)
	}
	sort.Strings(cats)
	return fmt.Sprintf("%.5f,%.5f|%.5f,%.5f|%.2f|%s|%t",
		route.Start.Lat, route.Start.Lng, route.End.Lat, route.End.Lng,
		prefs.MaxDetourKm, strings.Join(cats, ","), prefs.SingleVendorPreferred)
}
