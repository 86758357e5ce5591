package ledger

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventClosed   = errors.New("event is past its RSVP deadline")
	ErrInvalidIntent = errors.New("invalid RSVP intent")
)

// Outcome reports what the ledger actually did with a submission. The final
// status may differ from the requested intent (a full event waitlists), and
// withdrawing a confirmed spot may promote other records as a side effect;
// each promotion is its own notification trigger for the caller.
type Outcome struct {
	Rsvp     model.Rsvp
	Promoted []model.Rsvp
}

// Ledger owns all RSVP records. Every mutation for one event runs under that
// event's mutex, so capacity is always computed against a quiescent ledger;
// different events proceed in parallel.
type Ledger struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

func New(db *gorm.DB) *Ledger {
	return &Ledger{
		db:    db,
		locks: make(map[uuid.UUID]*sync.Mutex),
		now:   time.Now,
	}
}

func (l *Ledger) eventLock(eventID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[eventID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[eventID] = lock
	}
	return lock
}

// Submit applies one RSVP state transition. Callers may request going, maybe
// or declined; waitlisted is assigned by the ledger when a confirmed-intent
// submission does not fit the event's remaining capacity.
func (l *Ledger) Submit(ctx context.Context, eventID, userID uuid.UUID, intent model.RsvpStatus, guestCount int, dietaryNotes, comment string) (Outcome, error) {
	switch intent {
	case model.RsvpGoing, model.RsvpMaybe, model.RsvpDeclined:
	default:
		return Outcome{}, ErrInvalidIntent
	}
	if guestCount < 0 {
		return Outcome{}, ErrInvalidIntent
	}

	lock := l.eventLock(eventID)
	lock.Lock()
	defer lock.Unlock()

	var event model.Event
	if err := l.db.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Outcome{}, ErrEventNotFound
		}
		return Outcome{}, err
	}
	if event.RsvpDeadline != nil && l.now().After(*event.RsvpDeadline) {
		return Outcome{}, ErrEventClosed
	}

	var out Outcome
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Rsvp
		found := true
		if err := tx.Where("event_id = ? AND user_id = ?", eventID, userID).First(&existing).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
		}
		priorStatus := existing.Status

		confirmed, err := confirmedWeight(tx, eventID, userID)
		if err != nil {
			return err
		}

		final := intent
		if intent == model.RsvpGoing && event.Capacity > 0 && confirmed+1+guestCount > event.Capacity {
			final = model.RsvpWaitlisted
		}

		if found {
			existing.Status = final
			existing.GuestCount = guestCount
			existing.DietaryNotes = dietaryNotes
			existing.Comment = comment
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
		} else {
			existing = model.Rsvp{
				EventID:      eventID,
				UserID:       userID,
				Status:       final,
				GuestCount:   guestCount,
				DietaryNotes: dietaryNotes,
				Comment:      comment,
			}
			if err := tx.Create(&existing).Error; err != nil {
				return err
			}
		}
		out.Rsvp = existing

		if priorStatus == model.RsvpGoing && final != model.RsvpGoing {
			promoted, err := promoteWaitlisted(tx, event)
			if err != nil {
				return err
			}
			out.Promoted = promoted
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("event_id", eventID).Error("RSVP submission failed")
		return Outcome{}, err
	}
	return out, nil
}

// confirmedWeight is the derived capacity projection: the summed weight of
// every confirmed record except the one being rewritten. Never cached.
func confirmedWeight(tx *gorm.DB, eventID, excludeUserID uuid.UUID) (int, error) {
	var total int
	err := tx.Model(&model.Rsvp{}).
		Select("COALESCE(SUM(1 + guest_count), 0)").
		Where("event_id = ? AND status = ? AND user_id <> ?", eventID, model.RsvpGoing, excludeUserID).
		Scan(&total).Error
	return total, err
}

// promoteWaitlisted walks the waitlist oldest-first and confirms every
// record whose weight fits the remaining free capacity. A large party at the
// head does not block a smaller one behind it.
func promoteWaitlisted(tx *gorm.DB, event model.Event) ([]model.Rsvp, error) {
	confirmed, err := confirmedWeight(tx, event.ID, uuid.Nil)
	if err != nil {
		return nil, err
	}

	free := math.MaxInt
	if event.Capacity > 0 {
		free = event.Capacity - confirmed
	}
	if free <= 0 {
		return nil, nil
	}

	var waitlisted []model.Rsvp
	if err := tx.Where("event_id = ? AND status = ?", event.ID, model.RsvpWaitlisted).
		Order("created_at ASC").
		Find(&waitlisted).Error; err != nil {
		return nil, err
	}

	var promoted []model.Rsvp
	for _, w := range waitlisted {
		if w.Weight() > free {
			continue
		}
		w.Status = model.RsvpGoing
		if err := tx.Save(&w).Error; err != nil {
			return nil, err
		}
		free -= w.Weight()
		promoted = append(promoted, w)
		if free <= 0 {
			break
		}
	}
	return promoted, nil
}

// Stats is the admin-facing projection of an event's RSVP set.
type Stats struct {
	Going           int64 `json:"going"`
	Maybe           int64 `json:"maybe"`
	Declined        int64 `json:"declined"`
	Waitlisted      int64 `json:"waitlisted"`
	ConfirmedWeight int   `json:"confirmed_weight"`
}

func (l *Ledger) Stats(ctx context.Context, eventID uuid.UUID) (Stats, error) {
	var stats Stats
	db := l.db.WithContext(ctx).Model(&model.Rsvp{})

	counts := []struct {
		status model.RsvpStatus
		dest   *int64
	}{
		{model.RsvpGoing, &stats.Going},
		{model.RsvpMaybe, &stats.Maybe},
		{model.RsvpDeclined, &stats.Declined},
		{model.RsvpWaitlisted, &stats.Waitlisted},
	}
	for _, c := range counts {
		if err := db.Session(&gorm.Session{}).
			Where("event_id = ? AND status = ?", eventID, c.status).
			Count(c.dest).Error; err != nil {
			return Stats{}, err
		}
	}

	weight, err := confirmedWeight(l.db.WithContext(ctx), eventID, uuid.Nil)
	if err != nil {
		return Stats{}, err
	}
	stats.ConfirmedWeight = weight
	return stats, nil
}

// ListByEvent returns the full RSVP set for one event, oldest first.
func (l *Ledger) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]model.Rsvp, error) {
	var rsvps []model.Rsvp
	err := l.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rsvps).Error
	return rsvps, err
}
