// Package notify delivers fire-and-forget notifications about exam events.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event types published by the exam engine.
const (
	ExamCreated    = "exam.created"
	ExamSubmitted  = "exam.submitted"
	ExamClosed     = "exam.closed"
	AnswerReviewed = "answer.reviewed"
)

// Event is a notification addressed to an audience such as a course or a user.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Audience  string         `json:"audience"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewEvent builds an event with a fresh id and the current UTC time.
func NewEvent(typ, audience, title, message string, data map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Audience:  audience,
		Title:     title,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// CourseAudience addresses every member of a course.
func CourseAudience(courseID int64) string {
	return fmt.Sprintf("course:%d", courseID)
}

// UserAudience addresses a single user.
func UserAudience(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes events to the structured log. It is used when no
// delivery endpoint is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	slog.Info("notification", "id", ev.ID, "type", ev.Type, "audience", ev.Audience, "title", ev.Title)
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

type async struct {
	next    Publisher
	timeout time.Duration
}

// Async wraps a publisher so that Publish returns immediately and delivery
// happens on its own goroutine, detached from the caller's context.
// Delivery failures are logged and dropped.
func Async(next Publisher, timeout time.Duration) Publisher {
	return &async{next: next, timeout: timeout}
}

func (a *async) Publish(_ context.Context, ev Event) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Publish(ctx, ev); err != nil {
			slog.Warn("notification delivery failed", "id", ev.ID, "type", ev.Type, "error", err)
		}
	}()
	return nil
}
