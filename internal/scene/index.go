// Package scene implements C2 SceneIndex: a derived view over the
// SessionTable keyed by each record's current scene.
package scene

import "scenerelay/internal/session"

// Index is a lazy filter over a session.Table rather than a materialized
// index: PlayerRecord.currentScene is the single source of truth, and a
// write to it is visible to the next PeersInScene/IsSceneEmpty call without
// any separate bookkeeping to keep in sync (spec.md §4.2).
type Index struct {
	table *session.Table
}

func New(table *session.Table) *Index {
	return &Index{table: table}
}

// PeersInScene returns every active record currently in scene, excluding id.
func (idx *Index) PeersInScene(sceneName string, excludeID uint16) []*session.PlayerRecord {
	if sceneName == "" {
		return nil
	}
	var peers []*session.PlayerRecord
	for _, rec := range idx.table.Snapshot() {
		if rec.ID == excludeID {
			continue
		}
		if rec.CurrentScene() == sceneName {
			peers = append(peers, rec)
		}
	}
	return peers
}

// IsSceneEmpty reports whether no active record currently occupies scene.
func (idx *Index) IsSceneEmpty(sceneName string) bool {
	if sceneName == "" {
		return true
	}
	for _, rec := range idx.table.Snapshot() {
		if rec.CurrentScene() == sceneName {
			return false
		}
	}
	return true
}
