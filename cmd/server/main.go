package main

import (
	"context"
	"fmt"

	"github.com/techyogeshchauhan/alumni-scheduler/app"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/handler"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/ledger"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/notify"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/ratelimit"
	"github.com/techyogeshchauhan/alumni-scheduler/internal/token"
	"github.com/techyogeshchauhan/alumni-scheduler/lib/mail"
	"github.com/techyogeshchauhan/alumni-scheduler/lib/queue"
	"github.com/techyogeshchauhan/alumni-scheduler/router"

	"github.com/google/uuid"
)

const JOBS_TOPIC = "notification_jobs"

type jobEnqueued struct {
	JobID uuid.UUID `json:"job_id"`
}

func main() {
	app.Setup()
	mail.Setup(app.Mail.Host, app.Mail.Port, app.Mail.Username, app.Mail.Password, app.Mail.From)

	fmt.Println("*************** SETUP QUEUE ***************")
	queue.Setup()

	db := app.Database.DB

	engineCfg := notify.Config{
		DB:          db,
		Channel:     mail.Client,
		MaxAttempts: app.Engine.MaxAttempts,
	}

	var producer *queue.Producer
	if queue.QueueConfig.Enabled {
		if err := queue.CreateTopic(JOBS_TOPIC, 3, 1); err != nil {
			fmt.Printf("Failed to create jobs topic: %v\n", err)
		} else {
			fmt.Println("Jobs topic created successfully")
		}

		producer = queue.NewProducer()
		engineCfg.Enqueue = func(ctx context.Context, jobID uuid.UUID) error {
			return producer.Send(ctx, JOBS_TOPIC, jobID.String(), jobEnqueued{JobID: jobID})
		}
	}

	engine := notify.NewEngine(engineCfg)

	if queue.QueueConfig.Enabled {
		go func() {
			worker := queue.NewWorker[jobEnqueued](
				app.Queue.GroupID,
				[]string{JOBS_TOPIC},
				3,
				func(ctx context.Context, msg queue.Message[jobEnqueued]) error {
					return engine.ProcessJob(ctx, msg.Value.JobID)
				},
			)
			defer worker.Close()

			_ = worker.Run(context.Background())
		}()
		fmt.Println("Notification worker started successfully")
	}

	// The sweeper backstops the queue: retries, restarts, and anything the
	// wake-up path dropped.
	sweeper := notify.NewSweeper(engine, app.Engine.SweepInterval, app.Engine.SweepBatch)
	sweeper.Start()

	limiter := ratelimit.New(app.RateLimit.Window, map[string]int{
		ratelimit.ActionResetRequest: app.RateLimit.ResetRequests,
		ratelimit.ActionResetSubmit:  app.RateLimit.ResetSubmits,
	})

	h := handler.New(db, ledger.New(db), token.NewStore(db), limiter, engine, app.Config("BASE_URL"))

	router.Setup(h)
}
