// Package identity keeps a peer's participant id stable across restarts.
package identity

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/quasilyte/gdata"
)

const itemKey = "identity"

// Store is the slice of gdata.Manager that identity needs.
type Store interface {
	LoadItem(key string) ([]byte, error)
	SaveItem(key string, data []byte) error
}

// SavedIdentity is the identity record stored on disk.
type SavedIdentity struct {
	ParticipantID string `json:"participantId"`
}

// OpenStore opens the gdata store for appName.
func OpenStore(appName string) (*gdata.Manager, error) {
	m, err := gdata.Open(gdata.Config{
		AppName: appName,
	})
	if err != nil {
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	return m, nil
}

// Load returns the saved participant id, generating and saving a new one on
// first run. A nil store yields a fresh id that is not persisted.
func Load(store Store) (string, error) {
	if store == nil {
		return uuid.NewString(), nil
	}

	data, err := store.LoadItem(itemKey)
	if err != nil {
		return "", fmt.Errorf("load identity: %w", err)
	}
	if len(data) > 0 {
		var saved SavedIdentity
		if err := json.Unmarshal(data, &saved); err != nil {
			log.Printf("Warning: Could not parse saved identity, generating a new one: %v", err)
		} else if saved.ParticipantID != "" {
			return saved.ParticipantID, nil
		}
	}

	id := uuid.NewString()
	if err := Save(store, id); err != nil {
		return "", err
	}
	return id, nil
}

// Save overwrites the stored participant id.
func Save(store Store, id string) error {
	data, err := json.Marshal(SavedIdentity{ParticipantID: id})
	if err != nil {
		return fmt.Errorf("serialize identity: %w", err)
	}
	if err := store.SaveItem(itemKey, data); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}
