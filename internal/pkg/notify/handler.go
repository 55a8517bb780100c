// Package notify turns notification.create outbox events into stored
// notifications and delivers them over SMS and email.
package notify

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

// OutboxHandler stores the notification an event describes and queues its
// external delivery. The event id is the dedupe key, so a redelivered event
// never creates a second row. jobs may be nil when no queue is running.
func OutboxHandler(jobs jobqueue.Enqueuer) outbox.Handler {
	return func(ctx context.Context, db *gorm.DB, ev *models.OutboxEvent) error {
		var p outbox.NotificationPayload
		if err := outbox.Decode(ev, &p); err != nil {
			return err
		}
		if p.UserID == "" || p.Type == "" {
			return errors.New("notification payload missing user_id or type")
		}

		repo := repository.NewNotificationRepository(db.WithContext(ctx))
		n := &models.Notification{
			UserID:      p.UserID,
			Type:        p.Type,
			Title:       p.Title,
			Body:        p.Body,
			Metadata:    datatypes.JSONMap(p.Metadata),
			RelatedID:   p.RelatedID,
			RelatedType: p.RelatedType,
			DedupeKey:   ev.ID,
		}
		created, err := repo.CreateIfNotExists(n)
		if err != nil {
			return fmt.Errorf("store notification: %w", err)
		}
		if !created {
			if n, err = repo.GetByDedupeKey(ev.ID); err != nil {
				return fmt.Errorf("load notification %s: %w", ev.ID, err)
			}
		}

		// Enqueued on redelivery too: the previous attempt may have died
		// between insert and enqueue.
		if jobs == nil {
			return nil
		}
		_, err = jobs.EnqueueJob(ctx, jobqueue.JobTypeDeliverNotification,
			jobqueue.DeliverNotificationPayload{NotificationID: n.ID}.ToMap())
		return err
	}
}
