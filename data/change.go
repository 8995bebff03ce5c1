package data

import (
	"time"

	"github.com/google/uuid"
)

// ChangeAction names the kind of mutation recorded in the change log.
type ChangeAction string

const (
	ChangeInsert ChangeAction = "insert"
	ChangeUpdate ChangeAction = "update"
	ChangeDelete ChangeAction = "delete"
	ChangeStream ChangeAction = "stream"
)

// Change is one successful mutation of the store.
type Change struct {
	Time      time.Time    `json:"time"`
	Action    ChangeAction `json:"action"`
	Id        uuid.UUID    `json:"id"`
	Type      FileType     `json:"type"`
	Publisher string       `json:"publisher,omitempty"`
	Path      string       `json:"path"`
}

// StorageStats summarizes the current index.
type StorageStats struct {
	Entries     int              `json:"entries"`
	ByType      map[FileType]int `json:"by_type"`
	OpenHandles int              `json:"open_handles"`
}
