package tasks

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskType enumerates the recognized task categories.
type TaskType string

const (
	TaskTypeWork     TaskType = "work"
	TaskTypePersonal TaskType = "personal"
	TaskTypeResearch TaskType = "research"
	TaskTypeSocial   TaskType = "social"
)

// TaskTypes returns all valid task types in declaration order.
func TaskTypes() []TaskType {
	return []TaskType{TaskTypeWork, TaskTypePersonal, TaskTypeResearch, TaskTypeSocial}
}

// ValidTaskType reports whether t is a recognized task type.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeWork, TaskTypePersonal, TaskTypeResearch, TaskTypeSocial:
		return true
	}
	return false
}

// Task is owned by the primary store; UserID is a non-owning reference.
// The JSON tags are shared by the HTTP layer and the cached collection
// payload.
type Task struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	TaskType    TaskType  `json:"taskType"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// SearchCriteria holds optional search predicates. An empty string or nil
// field means "no predicate for this field"; date bounds apply to UpdatedAt
// inclusively.
type SearchCriteria struct {
	TaskType    TaskType   `json:"taskType"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DateFrom    *time.Time `json:"dateFrom"`
	DateTo      *time.Time `json:"dateTo"`
}

// Empty reports whether no predicate is set at all.
func (c SearchCriteria) Empty() bool {
	return c.TaskType == "" && c.Title == "" && c.Description == "" &&
		c.DateFrom == nil && c.DateTo == nil
}

// searchDateLayouts are the accepted wire formats for the date bounds: the
// browser date input submits bare dates, other clients may send RFC 3339.
var searchDateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseSearchDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range searchDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}

// UnmarshalJSON decodes the date bounds from strings so that a blank date
// input, which arrives as "" rather than being omitted, means "no predicate"
// just like the empty string fields do.
func (c *SearchCriteria) UnmarshalJSON(data []byte) error {
	var aux struct {
		TaskType    TaskType `json:"taskType"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		DateFrom    string   `json:"dateFrom"`
		DateTo      string   `json:"dateTo"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	from, err := parseSearchDate(aux.DateFrom)
	if err != nil {
		return err
	}
	to, err := parseSearchDate(aux.DateTo)
	if err != nil {
		return err
	}

	*c = SearchCriteria{
		TaskType:    aux.TaskType,
		Title:       aux.Title,
		Description: aux.Description,
		DateFrom:    from,
		DateTo:      to,
	}
	return nil
}
