package domain

// Snippet is the slice of snippet metadata the collaboration layer needs.
// Snippet CRUD itself lives in an external service; this type only carries
// what owner/title resolution on join reads.
type Snippet struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	Title    string `json:"title"`
	Language string `json:"language"`
}
