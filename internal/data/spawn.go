package data

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kinds of spawn groups.
const (
	KindDrifter  = "drifter"
	KindMarker   = "marker"
	KindScripted = "scripted"
)

var ErrSpawnGroup = errors.New("invalid spawn group")

// Area is a rectangle sprites are scattered over.
type Area struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

// SpawnGroup places Count identical sprites at random points of Area.
type SpawnGroup struct {
	Name      string  `yaml:"name"`
	Kind      string  `yaml:"kind"`
	Behaviour string  `yaml:"behaviour"` // lua update_<behaviour>, scripted only
	Count     int     `yaml:"count"`
	Area      Area    `yaml:"area"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Layer     float64 `yaml:"layer"`
	Speed     int     `yaml:"speed"` // max pixels per cycle on each axis
	Collide   bool    `yaml:"collide"`
	Listen    string  `yaml:"listen"` // user whose input steers the group
	Glyph     string  `yaml:"glyph"`
	Color     string  `yaml:"color"`
}

// SpawnList is the parsed spawn file.
type SpawnList struct {
	Groups []SpawnGroup `yaml:"groups"`
}

// LoadSpawnList loads a spawn YAML file.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	return ParseSpawnList(raw)
}

// ParseSpawnList decodes and validates spawn YAML.
func ParseSpawnList(raw []byte) (*SpawnList, error) {
	var l SpawnList
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	for i := range l.Groups {
		g := &l.Groups[i]
		if g.Width <= 0 {
			g.Width = 1
		}
		if g.Height <= 0 {
			g.Height = 1
		}
		if g.Glyph == "" {
			g.Glyph = "*"
		}
		if err := g.validate(); err != nil {
			return nil, fmt.Errorf("spawn group %d (%s): %w", i, g.Name, err)
		}
	}
	return &l, nil
}

func (g *SpawnGroup) validate() error {
	switch g.Kind {
	case KindDrifter, KindMarker:
	case KindScripted:
		if g.Behaviour == "" {
			return fmt.Errorf("%w: scripted group without behaviour", ErrSpawnGroup)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrSpawnGroup, g.Kind)
	}
	if g.Count < 0 {
		return fmt.Errorf("%w: negative count", ErrSpawnGroup)
	}
	if g.Area.W <= 0 || g.Area.H <= 0 {
		return fmt.Errorf("%w: empty area", ErrSpawnGroup)
	}
	if g.Layer < 0 {
		return fmt.Errorf("%w: negative layer", ErrSpawnGroup)
	}
	return nil
}

// Total returns the number of sprites the list spawns.
func (l *SpawnList) Total() int {
	n := 0
	for _, g := range l.Groups {
		n += g.Count
	}
	return n
}

// Marshal encodes the list back to YAML.
func (l *SpawnList) Marshal() ([]byte, error) {
	return yaml.Marshal(l)
}
