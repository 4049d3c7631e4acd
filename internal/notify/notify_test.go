package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestWebhookPublish(t *testing.T) {
	var got Event
	var auth, eventType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		eventType = r.Header.Get("X-Event-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewWebhook(srv.URL, "s3cret", time.Second)
	ev := NewEvent(ExamSubmitted, UserAudience(7), "Exam submitted", "Midterm", map[string]any{"score": 15})
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if got.ID != ev.ID {
		t.Errorf("expected id %q, got %q", ev.ID, got.ID)
	}
	if got.Audience != "user:7" {
		t.Errorf("expected audience user:7, got %q", got.Audience)
	}
	if auth != "Bearer s3cret" {
		t.Errorf("expected bearer secret, got %q", auth)
	}
	if eventType != ExamSubmitted {
		t.Errorf("expected event type header %q, got %q", ExamSubmitted, eventType)
	}
}

func TestWebhookPublishErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewWebhook(srv.URL, "", time.Second)
	err := p.Publish(context.Background(), NewEvent(ExamClosed, CourseAudience(1), "t", "m", nil))
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Fatalf("expected status error, got %v", err)
	}
}

type chanPublisher chan Event

func (c chanPublisher) Publish(_ context.Context, ev Event) error {
	c <- ev
	return nil
}

func TestAsyncDelivers(t *testing.T) {
	ch := make(chanPublisher, 1)
	p := Async(ch, time.Second)
	ev := NewEvent(ExamCreated, CourseAudience(3), "New exam", "Quiz", nil)
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case got := <-ch:
		if got.ID != ev.ID {
			t.Errorf("expected %q, got %q", ev.ID, got.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
