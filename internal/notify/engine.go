package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/techyogeshchauhan/alumni-scheduler/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Channel is the delivery transport. The engine owns retries and status
// tracking; a Channel only needs to attempt one send and report the result.
type Channel interface {
	Deliver(ctx context.Context, address, subject, body string) error
}

// Recipient is one resolved fan-out target. Resolution and deduplication are
// the caller's concern; the engine treats the set as opaque and freezes it.
type Recipient struct {
	ID      uuid.UUID
	Name    string
	Address string
}

type Message struct {
	Subject string
	Body    string
}

// RenderFunc personalizes the message for one recipient. It is called once
// per recipient at dispatch time; results are frozen into the job.
type RenderFunc func(Recipient) Message

// DefaultBackoff is the retry schedule between delivery attempts.
var DefaultBackoff = []time.Duration{30 * time.Second, 2 * time.Minute, 10 * time.Minute}

type Config struct {
	DB          *gorm.DB
	Channel     Channel
	MaxAttempts int
	Backoff     []time.Duration
	// Enqueue is the optional queue wake-up issued after a successful
	// dispatch. Delivery never depends on it; the sweeper picks up anything
	// the queue misses.
	Enqueue func(ctx context.Context, jobID uuid.UUID) error
}

type Engine struct {
	db          *gorm.DB
	channel     Channel
	maxAttempts int
	backoff     []time.Duration
	enqueue     func(ctx context.Context, jobID uuid.UUID) error
	now         func() time.Time
}

func NewEngine(cfg Config) *Engine {
	e := &Engine{
		db:          cfg.DB,
		channel:     cfg.Channel,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		enqueue:     cfg.Enqueue,
		now:         time.Now,
	}
	if e.maxAttempts <= 0 {
		e.maxAttempts = 3
	}
	if len(e.backoff) == 0 {
		e.backoff = DefaultBackoff
	}
	return e
}

// Dispatch freezes one notification job: the job row plus one recipient row
// per target, all in a single transaction, messages already rendered. The
// caller gets the job id back immediately; delivery happens asynchronously.
func (e *Engine) Dispatch(ctx context.Context, trigger model.TriggerKind, subjectID uuid.UUID, recipients []Recipient, payload any, render RenderFunc) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}

	now := e.now()
	job := model.NotificationJob{
		ID:              uuid.New(),
		TriggerKind:     trigger,
		SubjectEntityID: subjectID,
		Payload:         data,
		Status:          model.JobPending,
		CreatedAt:       now,
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		seen := make(map[uuid.UUID]bool, len(recipients))
		for _, r := range recipients {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			msg := render(r)
			due := now
			entry := model.JobRecipient{
				ID:            uuid.New(),
				JobID:         job.ID,
				RecipientID:   r.ID,
				Address:       r.Address,
				Subject:       msg.Subject,
				Body:          msg.Body,
				Status:        model.RecipientPending,
				NextAttemptAt: &due,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("trigger", trigger).Error("failed to dispatch notification job")
		return uuid.Nil, err
	}

	if e.enqueue != nil {
		if err := e.enqueue(ctx, job.ID); err != nil {
			logrus.WithError(err).WithField("job_id", job.ID).Warn("queue wake-up failed, sweeper will pick the job up")
		}
	}
	return job.ID, nil
}

// ProcessJob delivers every due pending recipient of one job. Failures are
// per recipient: one bad address never fails the batch. Safe to call any
// number of times; delivered recipients are never re-sent.
func (e *Engine) ProcessJob(ctx context.Context, jobID uuid.UUID) error {
	var job model.NotificationJob
	if err := e.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		return err
	}
	if job.Status != model.JobPending {
		return nil
	}

	now := e.now()
	var due []model.JobRecipient
	if err := e.db.WithContext(ctx).
		Where("job_id = ? AND status = ? AND next_attempt_at <= ?", jobID, model.RecipientPending, now).
		Find(&due).Error; err != nil {
		return err
	}

	for i := range due {
		e.attempt(ctx, &due[i])
	}

	return e.settleJob(ctx, &job)
}

func (e *Engine) attempt(ctx context.Context, r *model.JobRecipient) {
	r.AttemptCount++
	err := e.channel.Deliver(ctx, r.Address, r.Subject, r.Body)

	now := e.now()
	updates := map[string]interface{}{
		"attempt_count": r.AttemptCount,
	}
	if err == nil {
		r.Status = model.RecipientDelivered
		updates["status"] = r.Status
		updates["next_attempt_at"] = nil
		updates["last_error"] = nil
	} else {
		msg := err.Error()
		updates["last_error"] = &msg
		if r.AttemptCount >= e.maxAttempts {
			r.Status = model.RecipientFailed
			updates["status"] = r.Status
			updates["next_attempt_at"] = nil
			logrus.WithField("recipient", r.RecipientID).WithField("job_id", r.JobID).
				Errorf("delivery failed permanently after %d attempts: %v", r.AttemptCount, err)
		} else {
			delay := e.backoff[min(r.AttemptCount-1, len(e.backoff)-1)]
			next := now.Add(delay)
			r.NextAttemptAt = &next
			updates["next_attempt_at"] = &next
			logrus.WithError(err).WithField("recipient", r.RecipientID).
				Warnf("delivery failed, retrying in %s", delay)
		}
	}

	if err := e.db.WithContext(ctx).Model(&model.JobRecipient{}).
		Where("id = ?", r.ID).Updates(updates).Error; err != nil {
		logrus.WithError(err).WithField("recipient", r.RecipientID).Error("failed to record delivery attempt")
	}
}

// settleJob recomputes the job status from its recipient ledger: pending
// while any recipient may still be attempted, then delivered on any success,
// dead-lettered only when every recipient failed permanently.
func (e *Engine) settleJob(ctx context.Context, job *model.NotificationJob) error {
	var pending, delivered int64
	db := e.db.WithContext(ctx).Model(&model.JobRecipient{})
	if err := db.Session(&gorm.Session{}).
		Where("job_id = ? AND status = ?", job.ID, model.RecipientPending).
		Count(&pending).Error; err != nil {
		return err
	}
	if err := db.Session(&gorm.Session{}).
		Where("job_id = ? AND status = ?", job.ID, model.RecipientDelivered).
		Count(&delivered).Error; err != nil {
		return err
	}

	now := e.now()
	updates := map[string]interface{}{"last_attempt_at": &now}
	if pending == 0 {
		if delivered > 0 {
			updates["status"] = model.JobDelivered
		} else {
			updates["status"] = model.JobDeadLettered
		}
	}

	return e.db.WithContext(ctx).Model(&model.NotificationJob{}).
		Where("id = ?", job.ID).Updates(updates).Error
}

// DueJobs lists pending jobs that have at least one recipient due for an
// attempt, oldest first. The sweeper's work queue.
func (e *Engine) DueJobs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := e.db.WithContext(ctx).Model(&model.JobRecipient{}).
		Distinct("job_recipients.job_id").
		Joins("JOIN notification_jobs ON notification_jobs.id = job_recipients.job_id").
		Where("notification_jobs.status = ?", model.JobPending).
		Where("job_recipients.status = ? AND job_recipients.next_attempt_at <= ?", model.RecipientPending, e.now()).
		Order("job_recipients.job_id").
		Limit(limit).
		Pluck("job_recipients.job_id", &ids).Error
	return ids, err
}
