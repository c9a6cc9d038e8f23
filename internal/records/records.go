// Package records defines the memory and task record types shared by the
// storage and vector-index layers.
package records

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Memory is a short text note captured for later recall.
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	Project   string    `json:"project,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a tracked work item.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Project     string    `json:"project,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// EmbeddingText returns the text that represents this memory in the vector
// index: content, category, tags, and project joined with single spaces.
// Empty fields contribute nothing.
func (m Memory) EmbeddingText() string {
	parts := make([]string, 0, 4)
	parts = appendPart(parts, m.Content)
	parts = appendPart(parts, m.Category)
	parts = appendPart(parts, strings.Join(m.Tags, " "))
	parts = appendPart(parts, m.Project)
	return strings.Join(parts, " ")
}

// EmbeddingText returns the text that represents this task in the vector
// index: title, description, project, category, and tags joined with single
// spaces. Empty fields contribute nothing.
func (t Task) EmbeddingText() string {
	parts := make([]string, 0, 5)
	parts = appendPart(parts, t.Title)
	parts = appendPart(parts, t.Description)
	parts = appendPart(parts, t.Project)
	parts = appendPart(parts, t.Category)
	parts = appendPart(parts, strings.Join(t.Tags, " "))
	return strings.Join(parts, " ")
}

// QueryText returns the text used to find memories relevant to this task:
// the embedding text minus the category field.
func (t Task) QueryText() string {
	parts := make([]string, 0, 4)
	parts = appendPart(parts, t.Title)
	parts = appendPart(parts, t.Description)
	parts = appendPart(parts, t.Project)
	parts = appendPart(parts, strings.Join(t.Tags, " "))
	return strings.Join(parts, " ")
}

func appendPart(parts []string, s string) []string {
	if s == "" {
		return parts
	}
	return append(parts, s)
}
