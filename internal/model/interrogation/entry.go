package interrogation

import "time"

// Entry records a line as it started revealing, for review after the scene.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Speaker   string    `json:"speaker"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
