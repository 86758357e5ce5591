package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/app"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, app.Migrate(db))
	return db
}

func createTestEvent(t *testing.T, db *gorm.DB, capacity int) model.Event {
	t.Helper()
	event := model.Event{
		Title:    "Homecoming Dinner",
		Location: "Main Hall",
		StartsAt: time.Now().Add(72 * time.Hour),
		Capacity: capacity,
	}
	require.NoError(t, db.Create(&event).Error)
	return event
}

func submitGoing(t *testing.T, l *Ledger, eventID, userID uuid.UUID, guests int) Outcome {
	t.Helper()
	out, err := l.Submit(context.Background(), eventID, userID, model.RsvpGoing, guests, "", "")
	require.NoError(t, err)
	return out
}

func TestSubmitAssignsRequestedStatus(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 10)
	userID := uuid.New()

	out, err := l.Submit(context.Background(), event.ID, userID, model.RsvpMaybe, 2, "vegetarian", "might be late")
	require.NoError(t, err)
	assert.Equal(t, model.RsvpMaybe, out.Rsvp.Status)
	assert.Equal(t, 2, out.Rsvp.GuestCount)
	assert.Empty(t, out.Promoted)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 10)

	_, err := l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpWaitlisted, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidIntent)

	_, err = l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpGoing, -1, "", "")
	assert.ErrorIs(t, err, ErrInvalidIntent)
}

func TestSubmitUnknownEvent(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)

	_, err := l.Submit(context.Background(), uuid.New(), uuid.New(), model.RsvpGoing, 0, "", "")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestSubmitAfterDeadline(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	deadline := time.Now().Add(-time.Hour)
	event := model.Event{Title: "Closed Event", StartsAt: time.Now().Add(time.Hour), Capacity: 10, RsvpDeadline: &deadline}
	require.NoError(t, db.Create(&event).Error)

	_, err := l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpGoing, 0, "", "")
	assert.ErrorIs(t, err, ErrEventClosed)

	var count int64
	require.NoError(t, db.Model(&model.Rsvp{}).Where("event_id = ?", event.ID).Count(&count).Error)
	assert.Zero(t, count, "rejected submission must not mutate the ledger")
}

func TestSubmitUpsertsPerEventUser(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 10)
	userID := uuid.New()

	first := submitGoing(t, l, event.ID, userID, 1)

	out, err := l.Submit(context.Background(), event.ID, userID, model.RsvpDeclined, 0, "", "plans changed")
	require.NoError(t, err)
	assert.Equal(t, model.RsvpDeclined, out.Rsvp.Status)
	assert.Equal(t, first.Rsvp.ID, out.Rsvp.ID, "resubmission must rewrite the same record")

	var count int64
	require.NoError(t, db.Model(&model.Rsvp{}).Where("event_id = ? AND user_id = ?", event.ID, userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCapacityInvariant(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 3)

	a := submitGoing(t, l, event.ID, uuid.New(), 0) // weight 1
	b := submitGoing(t, l, event.ID, uuid.New(), 1) // weight 2, event now full
	c := submitGoing(t, l, event.ID, uuid.New(), 0) // does not fit

	assert.Equal(t, model.RsvpGoing, a.Rsvp.Status)
	assert.Equal(t, model.RsvpGoing, b.Rsvp.Status)
	assert.Equal(t, model.RsvpWaitlisted, c.Rsvp.Status)

	stats, err := l.Stats(context.Background(), event.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.ConfirmedWeight, event.Capacity)
	assert.EqualValues(t, 1, stats.Waitlisted)
}

func TestCapacityInvariantUnderConcurrency(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpGoing, 0, "", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := l.Stats(context.Background(), event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Going, "exactly one submission may claim the single seat")
	assert.EqualValues(t, 9, stats.Waitlisted)
	assert.Equal(t, 1, stats.ConfirmedWeight)
}

func TestUnboundedCapacityNeverWaitlists(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 0)

	for i := 0; i < 5; i++ {
		out := submitGoing(t, l, event.ID, uuid.New(), 3)
		assert.Equal(t, model.RsvpGoing, out.Rsvp.Status)
	}
}

func TestPromotionOnWithdrawal(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 1)

	userA := uuid.New()
	userB := uuid.New()

	submitGoing(t, l, event.ID, userA, 0)
	b := submitGoing(t, l, event.ID, userB, 0)
	require.Equal(t, model.RsvpWaitlisted, b.Rsvp.Status)

	out, err := l.Submit(context.Background(), event.ID, userA, model.RsvpDeclined, 0, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.RsvpDeclined, out.Rsvp.Status)
	require.Len(t, out.Promoted, 1)
	assert.Equal(t, userB, out.Promoted[0].UserID)
	assert.Equal(t, model.RsvpGoing, out.Promoted[0].Status)

	var stored model.Rsvp
	require.NoError(t, db.Where("event_id = ? AND user_id = ?", event.ID, userB).First(&stored).Error)
	assert.Equal(t, model.RsvpGoing, stored.Status)
}

func TestPromotionSkipsPartiesTooLargeToFit(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 2)

	userA := uuid.New()
	userB := uuid.New()
	userC := uuid.New()

	submitGoing(t, l, event.ID, userA, 1) // weight 2, full
	b := submitGoing(t, l, event.ID, userB, 2)
	require.Equal(t, model.RsvpWaitlisted, b.Rsvp.Status) // weight 3, waitlisted first
	c := submitGoing(t, l, event.ID, userC, 0)
	require.Equal(t, model.RsvpWaitlisted, c.Rsvp.Status) // weight 1, waitlisted second

	// A frees weight 2: B (weight 3) still does not fit, C (weight 1) does.
	out, err := l.Submit(context.Background(), event.ID, userA, model.RsvpDeclined, 0, "", "")
	require.NoError(t, err)
	require.Len(t, out.Promoted, 1)
	assert.Equal(t, userC, out.Promoted[0].UserID)

	var storedB model.Rsvp
	require.NoError(t, db.Where("event_id = ? AND user_id = ?", event.ID, userB).First(&storedB).Error)
	assert.Equal(t, model.RsvpWaitlisted, storedB.Status)
}

func TestPromotionCascadesInFIFOOrder(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 3)

	userA := uuid.New()
	userB := uuid.New()
	userC := uuid.New()

	submitGoing(t, l, event.ID, userA, 2) // weight 3, full
	submitGoing(t, l, event.ID, userB, 0) // waitlisted, weight 1
	submitGoing(t, l, event.ID, userC, 1) // waitlisted, weight 2

	// A frees weight 3: both B and C fit, promoted oldest first.
	out, err := l.Submit(context.Background(), event.ID, userA, model.RsvpDeclined, 0, "", "")
	require.NoError(t, err)
	require.Len(t, out.Promoted, 2)
	assert.Equal(t, userB, out.Promoted[0].UserID)
	assert.Equal(t, userC, out.Promoted[1].UserID)

	stats, err := l.Stats(context.Background(), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ConfirmedWeight)
	assert.LessOrEqual(t, stats.ConfirmedWeight, event.Capacity)
}

func TestGuestGrowthPastCapacityWaitlists(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 2)

	userA := uuid.New()
	userB := uuid.New()

	submitGoing(t, l, event.ID, userA, 0)
	submitGoing(t, l, event.ID, userB, 0)

	// A tries to grow to weight 3 in a capacity-2 event; the resubmission
	// waitlists instead of overcommitting.
	out, err := l.Submit(context.Background(), event.ID, userA, model.RsvpGoing, 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, model.RsvpWaitlisted, out.Rsvp.Status)

	stats, err := l.Stats(context.Background(), event.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, stats.ConfirmedWeight, event.Capacity)
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	l := New(db)
	event := createTestEvent(t, db, 10)

	submitGoing(t, l, event.ID, uuid.New(), 2)
	_, err := l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpMaybe, 0, "", "")
	require.NoError(t, err)
	_, err = l.Submit(context.Background(), event.ID, uuid.New(), model.RsvpDeclined, 0, "", "")
	require.NoError(t, err)

	stats, err := l.Stats(context.Background(), event.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Going)
	assert.EqualValues(t, 1, stats.Maybe)
	assert.EqualValues(t, 1, stats.Declined)
	assert.Equal(t, 3, stats.ConfirmedWeight)
}
