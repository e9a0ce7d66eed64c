// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Actor identifies who is submitting feedback.
type Actor string

// Recognized submitter roles.
const (
	ActorAdvertiser Actor = "advertiser"
	ActorAuthor     Actor = "author"
	ActorQuestion   Actor = "question"
)

// Valid reports whether the actor is one of the recognized roles.
func (a Actor) Valid() bool {
	switch a {
	case ActorAdvertiser, ActorAuthor, ActorQuestion:
		return true
	}
	return false
}

// Status is the review state of a submission.
type Status string

// Submission lifecycle states.
const (
	StatusNew       Status = "new"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// Valid reports whether the status is a recognized lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// Submission is one accepted feedback record. Rows are hard-deleted by
// superusers, so there is no soft-delete column.
type Submission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Actor     Actor     `gorm:"type:varchar(20);not null;index" json:"actor"`
	Theme     string    `gorm:"size:200;not null" json:"theme"`
	Email     string    `gorm:"size:254;not null;index" json:"email"`
	Company   string    `gorm:"size:150" json:"company,omitempty"`
	Person    string    `gorm:"size:100;not null" json:"person"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    Status    `gorm:"type:varchar(20);not null;default:new;index:idx_submissions_status_created,priority:1" json:"status"`
	SourceIP  string    `gorm:"size:45" json:"source_ip,omitempty"`
	UserAgent string    `gorm:"size:255" json:"-"`
	UserID    *uint     `gorm:"index" json:"user_id,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_submissions_status_created,priority:2" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identity describes the caller of an operation. The zero value is an
// anonymous caller.
type Identity struct {
	UserID      uint
	IsAdmin     bool
	IsSuperuser bool
}

// Anonymous reports whether the identity belongs to no known user.
func (i Identity) Anonymous() bool {
	return i.UserID == 0
}
