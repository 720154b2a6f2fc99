package tasks

import (
	"slices"
	"strings"
)

// Sortable fields accepted by Filter.SortBy.
const (
	SortByCreatedAt   = "createdAt"
	SortByUpdatedAt   = "updatedAt"
	SortByDueDate     = "dueDate"
	SortByTitle       = "title"
	SortByDescription = "description"
	SortByStatus      = "status"
	SortByPriority    = "priority"
	SortByID          = "id"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Filter selects and orders tasks for a listing. Zero-valued fields are
// ignored; the rest are combined with AND.
type Filter struct {
	Status   TaskStatus
	Priority Priority
	Tag      string
	Search   string
	SortBy   string
	// SortDir is "asc" for ascending; anything else sorts descending.
	SortDir string
}

// IsSortField reports whether field is a known sort key.
func IsSortField(field string) bool {
	switch field {
	case SortByCreatedAt, SortByUpdatedAt, SortByDueDate, SortByTitle,
		SortByDescription, SortByStatus, SortByPriority, SortByID:
		return true
	}
	return false
}

// Matches reports whether t passes every filter criterion.
func (f Filter) Matches(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), needle) &&
			!strings.Contains(strings.ToLower(t.Description), needle) {
			return false
		}
	}
	return true
}

// Apply returns copies of the matching tasks in the requested order.
// The input slice is left untouched.
func (f Filter) Apply(all []Task) []Task {
	out := make([]Task, 0, len(all))
	for _, t := range all {
		if f.Matches(t) {
			out = append(out, t.Clone())
		}
	}

	field := f.SortBy
	if !IsSortField(field) {
		field = SortByCreatedAt
	}
	dir := -1
	if f.SortDir == SortAsc {
		dir = 1
	}

	slices.SortStableFunc(out, func(a, b Task) int {
		return dir * compareField(a, b, field)
	})
	return out
}

func compareField(a, b Task, field string) int {
	switch field {
	case SortByUpdatedAt:
		return a.UpdatedAt.Compare(b.UpdatedAt)
	case SortByDueDate:
		// unset sorts first
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return -1
		case b.DueDate == nil:
			return 1
		}
		return a.DueDate.Compare(*b.DueDate)
	case SortByTitle:
		return strings.Compare(a.Title, b.Title)
	case SortByDescription:
		return strings.Compare(a.Description, b.Description)
	case SortByStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	case SortByPriority:
		return strings.Compare(string(a.Priority), string(b.Priority))
	case SortByID:
		return strings.Compare(a.ID, b.ID)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}
