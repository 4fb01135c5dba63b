package domain

import "time"

// Direction is an organizational unit owning folders and members.
type Direction struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Folder is a node in a direction's document tree.
type Folder struct {
	ID          string    `json:"id"`
	DirectionID string    `json:"direction_id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Name        string    `json:"name"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}
