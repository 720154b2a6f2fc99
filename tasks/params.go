package tasks

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"task-manager/errors"
)

// CreateParams carries the caller-supplied fields of a new task.
// New tasks always start pending, so status is not accepted here.
type CreateParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Tags        []string   `json:"tags"`
	DueDate     *time.Time `json:"dueDate"`
}

// Validate checks the fields a new task cannot be built without.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.NewValidationError("task title is required")
	}
	if p.Priority != "" && !p.Priority.IsValid() {
		return errors.NewValidationError("invalid priority", map[string]any{
			"priority": string(p.Priority),
		})
	}
	return nil
}

// Build synthesizes the task record for p with the given id and creation time.
func (p CreateParams) Build(id string, now time.Time) Task {
	priority := p.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	task := Task{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Status:      StatusPending,
		Priority:    priority,
		Tags:        NormalizeTags(p.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if p.DueDate != nil {
		due := *p.DueDate
		task.DueDate = &due
	}
	return task
}

// OptionalTime distinguishes "leave unchanged" (Set == false) from
// "clear" (Set == true, Time == nil) when decoding a JSON patch.
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// SetTime returns an OptionalTime that sets the value to t.
func SetTime(t time.Time) OptionalTime {
	return OptionalTime{Set: true, Time: &t}
}

// ClearTime returns an OptionalTime that unsets the value.
func ClearTime() OptionalTime {
	return OptionalTime{Set: true}
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// UpdateParams is the whitelist of fields an update may touch. A nil
// pointer leaves the field as it is.
type UpdateParams struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Status      *TaskStatus  `json:"status"`
	Priority    *Priority    `json:"priority"`
	Tags        *[]string    `json:"tags"`
	DueDate     OptionalTime `json:"dueDate"`
}

// Validate checks every provided field.
func (p UpdateParams) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.NewValidationError("task title cannot be empty")
	}
	if p.Status != nil && !p.Status.IsValid() {
		return errors.NewValidationError("invalid status", map[string]any{
			"status": string(*p.Status),
		})
	}
	if p.Priority != nil && !p.Priority.IsValid() {
		return errors.NewValidationError("invalid priority", map[string]any{
			"priority": string(*p.Priority),
		})
	}
	return nil
}

// IsEmpty reports whether p changes nothing besides the update timestamp.
func (p UpdateParams) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.Tags == nil && !p.DueDate.Set
}

// Apply merges p into a copy of t. The id and creation time are always
// kept, and UpdatedAt never moves backwards.
func (p UpdateParams) Apply(t Task, now time.Time) Task {
	next := t.Clone()

	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	if p.Tags != nil {
		next.Tags = NormalizeTags(*p.Tags)
	}
	if p.DueDate.Set {
		next.DueDate = nil
		if p.DueDate.Time != nil {
			due := *p.DueDate.Time
			next.DueDate = &due
		}
	}

	next.ID = t.ID
	next.CreatedAt = t.CreatedAt
	next.UpdatedAt = now
	if now.Before(t.UpdatedAt) {
		next.UpdatedAt = t.UpdatedAt
	}
	return next
}
