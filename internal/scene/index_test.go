package scene

import (
	"testing"

	"scenerelay/internal/session"
)

func newOccupant(t *testing.T, table *session.Table, id uint16, sceneName string) *session.PlayerRecord {
	t.Helper()
	rec := &session.PlayerRecord{ID: id, Username: "p"}
	if err := table.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec.SetCurrentScene(sceneName)
	return rec
}

func TestPeersInSceneExcludesSelfAndOtherScenes(t *testing.T) {
	table := session.NewTable()
	newOccupant(t, table, 1, "forest")
	newOccupant(t, table, 2, "forest")
	newOccupant(t, table, 3, "cave")

	idx := New(table)
	peers := idx.PeersInScene("forest", 1)
	if len(peers) != 1 || peers[0].ID != 2 {
		t.Fatalf("expected only id 2 in forest excluding id 1, got %+v", peers)
	}
}

func TestPeersInSceneEmptySceneName(t *testing.T) {
	table := session.NewTable()
	newOccupant(t, table, 1, "")
	idx := New(table)
	if peers := idx.PeersInScene("", 0); peers != nil {
		t.Fatalf("expected nil peers for empty scene name, got %+v", peers)
	}
}

func TestIsSceneEmpty(t *testing.T) {
	table := session.NewTable()
	idx := New(table)
	if !idx.IsSceneEmpty("forest") {
		t.Fatalf("expected forest to be empty before any occupant")
	}
	rec := newOccupant(t, table, 1, "forest")
	if idx.IsSceneEmpty("forest") {
		t.Fatalf("expected forest to be non-empty with an occupant")
	}
	rec.SetCurrentScene("")
	if !idx.IsSceneEmpty("forest") {
		t.Fatalf("expected forest to be empty after its occupant left")
	}
}
