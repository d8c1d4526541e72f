package data

import (
	"fmt"

	"github.com/otgo/server/internal/geo"
)

// Spawn places one non-player creature at boot.
type Spawn struct {
	Name      string        `yaml:"name"`
	Kind      string        `yaml:"kind"` // monster or npc
	Pos       geo.Position  `yaml:"pos"`
	LookType  uint16        `yaml:"look_type"`
	Head      uint8         `yaml:"head"`
	Body      uint8         `yaml:"body"`
	Legs      uint8         `yaml:"legs"`
	Feet      uint8         `yaml:"feet"`
	Health    int32         `yaml:"health"`
	Speed     uint16        `yaml:"speed"`
	Heading   string        `yaml:"direction"`
	Direction geo.Direction `yaml:"-"`
}

func (s *Spawn) resolve() error {
	if s.Kind != "monster" && s.Kind != "npc" {
		return fmt.Errorf("spawn %q: kind %q must be monster or npc", s.Name, s.Kind)
	}
	if s.Health <= 0 {
		s.Health = 100
	}
	if s.Heading == "" {
		s.Direction = geo.South
		return nil
	}
	d, ok := geo.ParseDirection(s.Heading)
	if !ok {
		return fmt.Errorf("spawn %q: bad direction %q", s.Name, s.Heading)
	}
	s.Direction = d
	return nil
}
