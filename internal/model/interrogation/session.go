package interrogation

import "time"

// Session captures one running interrogation scene.
type Session struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subjectId"`
	CreatedAt time.Time `json:"createdAt"`
}
