package assets

import "testing"

func TestDefaultArenaLoads(t *testing.T) {
	names := ArenaNames()
	found := false
	for _, n := range names {
		if n == DefaultArena {
			found = true
		}
	}
	if !found {
		t.Fatalf("arenas = %v, missing %s", names, DefaultArena)
	}

	a, err := LoadArena("")
	if err != nil {
		t.Fatal(err)
	}
	if a.Width != 4096 || a.Height != 2048 {
		t.Fatalf("size = %dx%d", a.Width, a.Height)
	}
	if len(a.SpawnPoints) != 4 || a.SpawnPoints[0].Index != 0 || a.SpawnPoints[3].Index != 3 {
		t.Fatalf("spawns = %+v", a.SpawnPoints)
	}
	if len(a.Walls) != 5 {
		t.Fatalf("walls = %d", len(a.Walls))
	}
}

func TestUnknownArena(t *testing.T) {
	if _, err := LoadArena("nope"); err == nil {
		t.Fatalf("expected error")
	}
}
