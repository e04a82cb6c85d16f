package refdata

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Suburb is one row of the suburb database.
type Suburb struct {
	Name     string
	Postcode string
	State    string
	Lat      float64
	Lng      float64
	Area     string
}

// NearbySuburb is a suburb within a radius query, with its distance.
type NearbySuburb struct {
	Name       string  `json:"name"`
	Postcode   string  `json:"postcode"`
	DistanceKm float64 `json:"distance_km"`
}

// RadiusGroups is the result of grouping suburbs around a base postcode.
type RadiusGroups struct {
	BaseSuburb   string
	BasePostcode string
	BaseState    string
	BaseLat      float64
	BaseLng      float64
	RadiusKm     float64
	ByArea       map[string][]NearbySuburb
	Total        int
}

const suburbsFile = "suburbs.csv"

func (s *Store) loadSuburbs() {
	s.subOnce.Do(func() {
		f, err := os.Open(filepath.Join(s.dir, suburbsFile))
		if err != nil {
			return
		}
		defer f.Close()

		r := csv.NewReader(f)
		header, err := r.Read()
		if err != nil {
			return
		}
		col := make(map[string]int, len(header))
		for i, h := range header {
			col[strings.ToLower(strings.TrimSpace(h))] = i
		}
		field := func(row []string, names ...string) string {
			for _, n := range names {
				if i, ok := col[n]; ok && i < len(row) {
					return strings.TrimSpace(row[i])
				}
			}
			return ""
		}

		for {
			row, err := r.Read()
			if err != nil {
				break
			}
			lat, _ := strconv.ParseFloat(field(row, "lat", "latitude"), 64)
			lng, _ := strconv.ParseFloat(field(row, "lng", "longitude"), 64)
			s.suburbs = append(s.suburbs, Suburb{
				Name:     field(row, "name"),
				Postcode: field(row, "postcode"),
				State:    field(row, "state"),
				Lat:      lat,
				Lng:      lng,
				Area:     field(row, "area", "region"),
			})
		}
	})
}

// SuburbsByPostcode returns every suburb matching the postcode.
func (s *Store) SuburbsByPostcode(postcode string) []Suburb {
	s.loadSuburbs()
	var out []Suburb
	for _, sub := range s.suburbs {
		if sub.Postcode == postcode {
			out = append(out, sub)
		}
	}
	return out
}

// SuburbsByName returns suburbs whose name contains the given name,
// case-insensitively.
func (s *Store) SuburbsByName(name string) []Suburb {
	s.loadSuburbs()
	needle := strings.ToLower(name)
	var out []Suburb
	for _, sub := range s.suburbs {
		if strings.Contains(strings.ToLower(sub.Name), needle) {
			out = append(out, sub)
		}
	}
	return out
}

// SuburbsWithinRadius returns suburbs within radiusKm of the point, nearest
// first. Rows without coordinates are skipped.
func (s *Store) SuburbsWithinRadius(lat, lng, radiusKm float64) []Suburb {
	s.loadSuburbs()
	type withDist struct {
		sub  Suburb
		dist float64
	}
	var hits []withDist
	for _, sub := range s.suburbs {
		if sub.Lat == 0 || sub.Lng == 0 {
			continue
		}
		d := haversineKm(lat, lng, sub.Lat, sub.Lng)
		if d <= radiusKm {
			hits = append(hits, withDist{sub, d})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })
	out := make([]Suburb, len(hits))
	for i, h := range hits {
		out[i] = h.sub
	}
	return out
}

// GroupedRadius finds suburbs within radiusKm of a base postcode, grouped by
// area. Suburbs in a different state from the base are dropped (the source
// data has stray rows with wrong coordinates), and groups smaller than
// minRegionSize are pruned as misclassified entries.
func (s *Store) GroupedRadius(basePostcode string, radiusKm float64, minRegionSize int) RadiusGroups {
	out := RadiusGroups{BasePostcode: basePostcode, RadiusKm: radiusKm, ByArea: map[string][]NearbySuburb{}}

	bases := s.SuburbsByPostcode(basePostcode)
	if len(bases) == 0 {
		return out
	}
	base := bases[0]
	out.BaseSuburb = base.Name
	out.BaseState = base.State
	out.BaseLat = base.Lat
	out.BaseLng = base.Lng
	if base.Lat == 0 || base.Lng == 0 {
		return out
	}

	for _, sub := range s.SuburbsWithinRadius(base.Lat, base.Lng, radiusKm) {
		if base.State != "" && sub.State != base.State {
			continue
		}
		area := sub.Area
		if area == "" {
			area = "Other"
		}
		out.ByArea[area] = append(out.ByArea[area], NearbySuburb{
			Name:       sub.Name,
			Postcode:   sub.Postcode,
			DistanceKm: math.Round(haversineKm(base.Lat, base.Lng, sub.Lat, sub.Lng)*10) / 10,
		})
		out.Total++
	}

	if minRegionSize > 1 {
		for area, subs := range out.ByArea {
			if len(subs) < minRegionSize {
				out.Total -= len(subs)
				delete(out.ByArea, area)
			}
		}
	}
	return out
}

// RegionNames returns the grouped area names, largest group first.
func (g RadiusGroups) RegionNames() []string {
	names := make([]string, 0, len(g.ByArea))
	for area := range g.ByArea {
		names = append(names, area)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := len(g.ByArea[names[i]]), len(g.ByArea[names[j]])
		if a != b {
			return a > b
		}
		return names[i] < names[j]
	})
	return names
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371
	dlat := (lat2 - lat1) * math.Pi / 180
	dlng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dlng/2)*math.Sin(dlng/2)
	return earthRadiusKm * 2 * math.Asin(math.Sqrt(a))
}
