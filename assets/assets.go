// Package assets embeds the arenas shipped with the peer binary.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/automoto/warband-mp/shared/leveldata"
)

const arenaDir = "arenas"

// DefaultArena is loaded when no arena is requested.
const DefaultArena = "skirmish"

var (
	//go:embed arenas/*.tmx
	arenaFS embed.FS
)

// ArenaNames lists the embedded arenas without their extension.
func ArenaNames() []string {
	entries, err := fs.ReadDir(arenaFS, arenaDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".tmx" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".tmx"))
	}
	sort.Strings(names)
	return names
}

// LoadArena loads an embedded arena by name.
func LoadArena(name string) (*leveldata.Arena, error) {
	if name == "" {
		name = DefaultArena
	}
	a, err := leveldata.LoadArena(arenaFS, path.Join(arenaDir, name+".tmx"))
	if err != nil {
		return nil, fmt.Errorf("arena %q: %w", name, err)
	}
	return a, nil
}
