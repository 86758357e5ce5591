package notify

import (
	"context"
	"errors"
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

// fakeChannel records every send and fails addresses on demand.
type fakeChannel struct {
	mu       sync.Mutex
	failing  map[string]int // address -> remaining failures (-1 = always)
	sent     map[string]int
	lastBody map[string]string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		failing:  make(map[string]int),
		sent:     make(map[string]int),
		lastBody: make(map[string]string),
	}
}

func (f *fakeChannel) Deliver(ctx context.Context, address, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.failing[address]; ok && n != 0 {
		if n > 0 {
			f.failing[address] = n - 1
		}
		return errors.New("connection refused")
	}
	f.sent[address]++
	f.lastBody[address] = body
	return nil
}

func (f *fakeChannel) sends(address string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[address]
}

func newTestEngine(t *testing.T, db *gorm.DB, ch *fakeChannel) (*Engine, *time.Time) {
	t.Helper()
	e := NewEngine(Config{DB: db, Channel: ch, MaxAttempts: 3})
	now := time.Now()
	e.now = func() time.Time { return now }
	return e, &now
}

func recipients(n int) []Recipient {
	out := make([]Recipient, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Recipient{
			ID:      uuid.New(),
			Name:    fmt.Sprintf("Alum %d", i+1),
			Address: fmt.Sprintf("alum%d@example.com", i+1),
		})
	}
	return out
}

func staticRender(r Recipient) Message {
	return Message{Subject: "Hello", Body: "Hello " + r.Name}
}

func TestDispatchFreezesRecipientSet(t *testing.T) {
	db := setupTestDB(t)
	e, _ := newTestEngine(t, db, newFakeChannel())

	recips := recipients(2)
	// A duplicate in the input collapses to one frozen row.
	recips = append(recips, recips[0])

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recips, nil, staticRender)
	require.NoError(t, err)

	var rows []model.JobRecipient
	require.NoError(t, db.Where("job_id = ?", jobID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, model.RecipientPending, row.Status)
		assert.Equal(t, "Hello", row.Subject)
		assert.NotEmpty(t, row.Body, "messages are rendered at dispatch time")
	}
}

func TestDispatchSurvivesEnqueueFailure(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	e := NewEngine(Config{
		DB:      db,
		Channel: ch,
		Enqueue: func(ctx context.Context, jobID uuid.UUID) error { return errors.New("broker down") },
	})

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(1), nil, staticRender)
	require.NoError(t, err, "the queue is a wake-up, not the source of truth")

	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 1, ch.sends("alum1@example.com"))
}

func TestAllRecipientsDelivered(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	e, _ := newTestEngine(t, db, ch)

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(3), nil, staticRender)
	require.NoError(t, err)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))

	var job model.NotificationJob
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, model.JobDelivered, job.Status)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, ch.sends(fmt.Sprintf("alum%d@example.com", i)))
	}
}

func TestPartialDeliveryIsJobLevelSuccess(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	ch.failing["alum2@example.com"] = -1 // always fails
	e, now := newTestEngine(t, db, ch)

	jobID, err := e.Dispatch(context.Background(), model.TriggerRsvpResponded, uuid.New(), recipients(3), nil, staticRender)
	require.NoError(t, err)

	// Three passes with the clock stepped past each backoff.
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	*now = now.Add(time.Minute)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	*now = now.Add(3 * time.Minute)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))

	var job model.NotificationJob
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, model.JobDelivered, job.Status, "partial success is success at the job level")

	var failed model.JobRecipient
	require.NoError(t, db.Where("job_id = ? AND address = ?", jobID, "alum2@example.com").First(&failed).Error)
	assert.Equal(t, model.RecipientFailed, failed.Status)
	assert.Equal(t, 3, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "connection refused")

	assert.Equal(t, 1, ch.sends("alum1@example.com"))
	assert.Equal(t, 1, ch.sends("alum3@example.com"))
}

func TestDeadLetterWhenEveryRecipientFails(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	ch.failing["alum1@example.com"] = -1
	ch.failing["alum2@example.com"] = -1
	e, now := newTestEngine(t, db, ch)

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(2), nil, staticRender)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, e.ProcessJob(context.Background(), jobID))
		*now = now.Add(15 * time.Minute)
	}

	var job model.NotificationJob
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, model.JobDeadLettered, job.Status)
}

func TestRetryWaitsForBackoff(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	ch.failing["alum1@example.com"] = 1 // fails once, then recovers
	e, now := newTestEngine(t, db, ch)

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(1), nil, staticRender)
	require.NoError(t, err)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))

	// Within the 30s backoff nothing is due.
	*now = now.Add(10 * time.Second)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 0, ch.sends("alum1@example.com"))

	*now = now.Add(30 * time.Second)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 1, ch.sends("alum1@example.com"))

	var job model.NotificationJob
	require.NoError(t, db.First(&job, "id = ?", jobID).Error)
	assert.Equal(t, model.JobDelivered, job.Status)
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	ch.failing["alum2@example.com"] = 1
	e, now := newTestEngine(t, db, ch)

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(2), nil, staticRender)
	require.NoError(t, err)

	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 1, ch.sends("alum1@example.com"))

	// Reprocessing while recipient 2 retries must not re-send recipient 1.
	*now = now.Add(time.Minute)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 1, ch.sends("alum1@example.com"))
	assert.Equal(t, 1, ch.sends("alum2@example.com"))

	// And reprocessing a settled job is a no-op entirely.
	require.NoError(t, e.ProcessJob(context.Background(), jobID))
	assert.Equal(t, 1, ch.sends("alum1@example.com"))
	assert.Equal(t, 1, ch.sends("alum2@example.com"))
}

func TestSweeperDrivesDueJobs(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	e, _ := newTestEngine(t, db, ch)
	s := NewSweeper(e, time.Second, 10)

	_, err := e.Dispatch(context.Background(), model.TriggerEventCreated, uuid.New(), recipients(2), nil, staticRender)
	require.NoError(t, err)
	_, err = e.Dispatch(context.Background(), model.TriggerPasswordReset, uuid.New(), recipients(1), nil, staticRender)
	require.NoError(t, err)

	s.Sweep(context.Background())

	var pending int64
	require.NoError(t, db.Model(&model.NotificationJob{}).
		Where("status = ?", model.JobPending).Count(&pending).Error)
	assert.Zero(t, pending)
}

func TestRenderersPersonalizeMessages(t *testing.T) {
	db := setupTestDB(t)
	ch := newFakeChannel()
	e, _ := newTestEngine(t, db, ch)

	event := model.Event{
		Title:    "Reunion Gala",
		Location: "Grand Ballroom",
		StartsAt: time.Date(2026, time.October, 3, 19, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&event).Error)

	jobID, err := e.Dispatch(context.Background(), model.TriggerEventCreated, event.ID,
		recipients(1), event, EventCreatedRenderer(event))
	require.NoError(t, err)
	require.NoError(t, e.ProcessJob(context.Background(), jobID))

	ch.mu.Lock()
	body := ch.lastBody["alum1@example.com"]
	ch.mu.Unlock()
	assert.Contains(t, body, "Alum 1")
	assert.Contains(t, body, "Reunion Gala")
	assert.Contains(t, body, "Grand Ballroom")
	assert.Contains(t, body, "October 3, 2026")
}
