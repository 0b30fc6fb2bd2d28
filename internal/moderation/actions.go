package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/STRATINT/eventfeed/internal/models"
)

// Store is the persistence a Moderator mutates.
type Store interface {
	Get(ctx context.Context, id string) (models.CandidateEvent, error)
	Update(ctx context.Context, event models.CandidateEvent) error
	Delete(ctx context.Context, id string) error
}

// ApprovalNotifier is told about candidates that become publicly visible.
type ApprovalNotifier interface {
	PublishEventApproved(ctx context.Context, event models.CandidateEvent) error
}

// EditFields holds the fields a moderator may change. Nil fields are left
// untouched.
type EditFields struct {
	Title         *string    `json:"title,omitempty"`
	Description   *string    `json:"description,omitempty"`
	EventDate     *time.Time `json:"event_date,omitempty"`
	Location      *string    `json:"location,omitempty"`
	OrganizerName *string    `json:"organizer_name,omitempty"`
	SourceURL     *string    `json:"source_url,omitempty"`
	Price         *string    `json:"price,omitempty"`
	ImageURL      *string    `json:"image_url,omitempty"`
	Tags          *[]string  `json:"tags,omitempty"`
}

// Empty reports whether no field is set.
func (f EditFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.EventDate == nil &&
		f.Location == nil && f.OrganizerName == nil && f.SourceURL == nil &&
		f.Price == nil && f.ImageURL == nil && f.Tags == nil
}

// ErrInvalidEdit is returned when an edit would leave a candidate unusable.
var ErrInvalidEdit = errors.New("invalid edit")

// Moderator applies single-record moderation actions. Each action stamps
// UpdatedAt and has no effect on other records.
type Moderator struct {
	store    Store
	notifier ApprovalNotifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewModerator creates a Moderator. notifier may be nil.
func NewModerator(store Store, notifier ApprovalNotifier, logger *slog.Logger) *Moderator {
	return &Moderator{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		logger:   logger.With("component", "moderation"),
	}
}

// Approve publishes a candidate.
func (m *Moderator) Approve(ctx context.Context, id string) (models.CandidateEvent, error) {
	event, err := m.mutate(ctx, id, func(e *models.CandidateEvent) error {
		e.Status = models.StatusApproved
		e.RejectionReason = ""
		return nil
	})
	if err != nil {
		return models.CandidateEvent{}, err
	}

	if m.notifier != nil {
		if err := m.notifier.PublishEventApproved(ctx, event); err != nil {
			m.logger.Warn("failed to publish approval", "id", id, "error", err)
		}
	}
	m.logger.Info("candidate approved", "id", id, "source", event.Source)
	return event, nil
}

// Reject archives a candidate with an optional reason.
func (m *Moderator) Reject(ctx context.Context, id, reason string) (models.CandidateEvent, error) {
	event, err := m.mutate(ctx, id, func(e *models.CandidateEvent) error {
		e.Status = models.StatusArchived
		e.RejectionReason = strings.TrimSpace(reason)
		return nil
	})
	if err != nil {
		return models.CandidateEvent{}, err
	}
	m.logger.Info("candidate rejected", "id", id, "reason", event.RejectionReason)
	return event, nil
}

// Edit changes whitelisted fields of a candidate.
func (m *Moderator) Edit(ctx context.Context, id string, fields EditFields) (models.CandidateEvent, error) {
	if fields.Empty() {
		return models.CandidateEvent{}, fmt.Errorf("%w: no fields to update", ErrInvalidEdit)
	}
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return models.CandidateEvent{}, fmt.Errorf("%w: title cannot be empty", ErrInvalidEdit)
	}

	event, err := m.mutate(ctx, id, func(e *models.CandidateEvent) error {
		setString(&e.Title, fields.Title)
		setString(&e.Description, fields.Description)
		setString(&e.Location, fields.Location)
		setString(&e.OrganizerName, fields.OrganizerName)
		setString(&e.SourceURL, fields.SourceURL)
		setString(&e.Price, fields.Price)
		setString(&e.ImageURL, fields.ImageURL)
		if fields.EventDate != nil {
			d := *fields.EventDate
			e.EventDate = &d
		}
		if fields.Tags != nil {
			e.Tags = models.NormalizeTags(*fields.Tags)
		}
		return nil
	})
	if err != nil {
		return models.CandidateEvent{}, err
	}
	m.logger.Info("candidate edited", "id", id)
	return event, nil
}

// Delete removes a candidate.
func (m *Moderator) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete candidate %s: %w", id, err)
	}
	m.logger.Info("candidate deleted", "id", id)
	return nil
}

func (m *Moderator) mutate(ctx context.Context, id string, apply func(*models.CandidateEvent) error) (models.CandidateEvent, error) {
	event, err := m.store.Get(ctx, id)
	if err != nil {
		return models.CandidateEvent{}, fmt.Errorf("get candidate %s: %w", id, err)
	}
	if err := apply(&event); err != nil {
		return models.CandidateEvent{}, err
	}
	event.UpdatedAt = m.now().UTC()

	if err := m.store.Update(ctx, event); err != nil {
		return models.CandidateEvent{}, fmt.Errorf("update candidate %s: %w", id, err)
	}
	return event, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
