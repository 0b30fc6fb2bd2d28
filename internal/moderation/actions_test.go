package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

type memoryStore struct {
	events map[string]models.CandidateEvent
}

func newMemoryStore(events ...models.CandidateEvent) *memoryStore {
	s := &memoryStore{events: make(map[string]models.CandidateEvent)}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func (s *memoryStore) Get(ctx context.Context, id string) (models.CandidateEvent, error) {
	e, ok := s.events[id]
	if !ok {
		return models.CandidateEvent{}, models.ErrNotFound
	}
	return e, nil
}

func (s *memoryStore) Update(ctx context.Context, event models.CandidateEvent) error {
	if _, ok := s.events[event.ID]; !ok {
		return models.ErrNotFound
	}
	s.events[event.ID] = event
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.events[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.events, id)
	return nil
}

type recordingNotifier struct {
	approved []string
	err      error
}

func (n *recordingNotifier) PublishEventApproved(ctx context.Context, event models.CandidateEvent) error {
	n.approved = append(n.approved, event.ID)
	return n.err
}

var fixedNow = time.Date(2026, 10, 1, 9, 30, 0, 0, time.UTC)

func newTestModerator(store Store, notifier ApprovalNotifier) *Moderator {
	m := NewModerator(store, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return fixedNow }
	return m
}

func pendingCandidate() models.CandidateEvent {
	return models.CandidateEvent{
		ID:     "evt-1",
		Title:  "Queer Bookclub",
		Source: "unlisted",
		Status: models.StatusPending,
		Tags:   []string{"books"},
	}
}

func TestModerator_Approve(t *testing.T) {
	store := newMemoryStore(pendingCandidate())
	notifier := &recordingNotifier{}
	m := newTestModerator(store, notifier)

	got, err := m.Approve(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
	if !store.events["evt-1"].UpdatedAt.Equal(fixedNow) {
		t.Errorf("updated_at = %v, want %v", store.events["evt-1"].UpdatedAt, fixedNow)
	}
	if len(notifier.approved) != 1 || notifier.approved[0] != "evt-1" {
		t.Errorf("notified = %v", notifier.approved)
	}
}

func TestModerator_ApproveNotifierFailureIsNotFatal(t *testing.T) {
	store := newMemoryStore(pendingCandidate())
	m := newTestModerator(store, &recordingNotifier{err: errors.New("broker down")})

	if _, err := m.Approve(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Approve() error = %v, want nil", err)
	}
	if store.events["evt-1"].Status != models.StatusApproved {
		t.Error("approval was not persisted")
	}
}

func TestModerator_Reject(t *testing.T) {
	approved := pendingCandidate()
	approved.Status = models.StatusApproved
	store := newMemoryStore(approved)
	m := newTestModerator(store, nil)

	got, err := m.Reject(context.Background(), "evt-1", "  not an event  ")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.Status != models.StatusArchived || got.RejectionReason != "not an event" {
		t.Errorf("got %+v", got)
	}
}

func TestModerator_Edit(t *testing.T) {
	store := newMemoryStore(pendingCandidate())
	m := newTestModerator(store, nil)

	title := " Queer Book Club "
	date := time.Date(2026, 12, 1, 18, 0, 0, 0, time.UTC)
	tags := []string{"Books", "books", "reading"}

	got, err := m.Edit(context.Background(), "evt-1", EditFields{Title: &title, EventDate: &date, Tags: &tags})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if got.Title != "Queer Book Club" {
		t.Errorf("title = %q", got.Title)
	}
	if got.EventDate == nil || !got.EventDate.Equal(date) {
		t.Errorf("event date = %v", got.EventDate)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags = %v, want duplicates removed", got.Tags)
	}
	if got.Status != models.StatusPending {
		t.Errorf("status changed to %q", got.Status)
	}
}

func TestModerator_EditValidation(t *testing.T) {
	store := newMemoryStore(pendingCandidate())
	m := newTestModerator(store, nil)
	blank := "   "

	tests := []struct {
		name   string
		fields EditFields
	}{
		{"no fields", EditFields{}},
		{"blank title", EditFields{Title: &blank}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Edit(context.Background(), "evt-1", tt.fields)
			if !errors.Is(err, ErrInvalidEdit) {
				t.Errorf("Edit() error = %v, want ErrInvalidEdit", err)
			}
		})
	}
}

func TestModerator_NotFound(t *testing.T) {
	m := newTestModerator(newMemoryStore(), nil)
	ctx := context.Background()

	if _, err := m.Approve(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Approve() error = %v, want ErrNotFound", err)
	}
	if _, err := m.Reject(ctx, "missing", ""); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Reject() error = %v, want ErrNotFound", err)
	}
	if err := m.Delete(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestModerator_DeleteOnlyTouchesOneRecord(t *testing.T) {
	other := pendingCandidate()
	other.ID = "evt-2"
	store := newMemoryStore(pendingCandidate(), other)
	m := newTestModerator(store, nil)

	if err := m.Delete(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := store.events["evt-1"]; ok {
		t.Error("evt-1 still present")
	}
	if _, ok := store.events["evt-2"]; !ok {
		t.Error("evt-2 was removed")
	}
}
