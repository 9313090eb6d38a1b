package series

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Point is one (timestamp, value) sample of a named series.
type Point struct {
	Timestamp string
	Value     float64
}

// MarshalJSON keeps the on-disk pair shape ["2024-01-02", 2034.5] on the
// wire so clients see exactly what the data files contain.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Timestamp, p.Value})
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.Timestamp); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Value)
}

// Store loads named series from JSON files under a data directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

type seriesFile struct {
	Series []Point                `json:"series"`
	Data   []Point                `json:"data"`
	Meta   map[string]interface{} `json:"meta"`
}

// Load reads <dir>/<name>.json. Both "series" and "data" top-level keys
// are accepted for the sample list.
func (s *Store) Load(name string) ([]Point, map[string]interface{}, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	path := filepath.Join(s.dir, name+".json")
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("series %q: %w", name, err)
	}
	var f seriesFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("series %q: %w", name, err)
	}
	points := f.Series
	if len(points) == 0 {
		points = f.Data
	}
	meta := f.Meta
	if meta == nil {
		meta = map[string]interface{}{}
	}
	return points, meta, nil
}

// Values extracts the numeric column.
func Values(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
