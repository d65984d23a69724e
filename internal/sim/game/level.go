package game

import (
	"fmt"
	"sort"

	"lawrence.mp/internal/sim/entity"
)

// Level is a named container entity players are placed into. GameID is the
// client's identifier for the level, sent in GO_TO_LEVEL.
type Level struct {
	Name   string
	GameID int
	Root   entity.Handle
}

// AddLevel spawns the level's root entity. Level roots mask visibility.
func (g *Game) AddLevel(name string, gameID int) (*Level, error) {
	if name == "" {
		return nil, fmt.Errorf("add level: empty name: %w", ErrInvariant)
	}
	if _, dup := g.levels[name]; dup {
		return nil, fmt.Errorf("add level %q: already exists: %w", name, ErrInvariant)
	}
	root, err := g.arena.Spawn(0, entity.KindLevel, name)
	if err != nil {
		return nil, err
	}
	root.SetOpaque(true)
	l := &Level{Name: name, GameID: gameID, Root: root.Handle()}
	g.levels[name] = l
	return l, nil
}

func (g *Game) Level(name string) *Level { return g.levels[name] }

func (g *Game) Levels() []*Level {
	out := make([]*Level, 0, len(g.levels))
	for _, l := range g.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
