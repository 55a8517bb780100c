package notify

//go:generate mockgen -source=deliver.go -destination=mocks/senders.go -package=mock_notify

import (
	"context"
	"errors"
	"fmt"
	"html"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
)

// SMSSender sends one text message.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// MailSender sends one HTML email.
type MailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"

	smsMaxRunes = 160
)

// smsTypes are the notification types important enough for a text message.
var smsTypes = map[string]bool{
	models.NotificationOfferAccepted:      true,
	models.NotificationJobOrderCreated:    true,
	models.NotificationNegotiationExpired: true,
}

// WantsSMS reports whether notifications of typ go out by SMS.
func WantsSMS(typ string) bool {
	return smsTypes[typ]
}

// Report lists what Deliver attempted per channel. A channel missing from
// Attempted was skipped (no address, opted out, or not configured).
type Report struct {
	NotificationID string           `json:"notification_id"`
	Attempted      []string         `json:"attempted"`
	Failed         map[string]error `json:"-"`
}

type Deliverer struct {
	db   *gorm.DB
	sms  SMSSender
	mail MailSender
}

// NewDeliverer builds a deliverer. Either sender may be nil to disable the
// channel.
func NewDeliverer(db *gorm.DB, sms SMSSender, mail MailSender) *Deliverer {
	return &Deliverer{db: db, sms: sms, mail: mail}
}

// Deliver sends a stored notification over every channel that applies, in
// parallel. Any channel failure is returned so the job is retried.
func (d *Deliverer) Deliver(ctx context.Context, notificationID string) (*Report, error) {
	repos := repository.NewRepositories(d.db.WithContext(ctx))
	n, err := repos.Notification.GetByID(notificationID)
	if err != nil {
		return nil, fmt.Errorf("load notification %s: %w", notificationID, err)
	}
	report := &Report{NotificationID: n.ID, Failed: map[string]error{}}

	profile, err := repos.Profile.GetByUserID(n.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Debugf("[Notify] No contact profile for %s, in-app only", n.UserID)
		return report, nil
	}
	if err != nil {
		return nil, err
	}

	type send struct {
		channel string
		fn      func(ctx context.Context) error
	}
	var sends []send
	if d.sms != nil && profile.Phone != "" && profile.SMSOptIn && WantsSMS(n.Type) {
		sends = append(sends, send{ChannelSMS, func(ctx context.Context) error {
			return d.sms.Send(ctx, profile.Phone, smsText(n))
		}})
	}
	if d.mail != nil && profile.Email != "" && profile.EmailOptIn {
		sends = append(sends, send{ChannelEmail, func(ctx context.Context) error {
			return d.mail.Send(ctx, profile.Email, n.Title, emailHTML(n, profile))
		}})
	}

	errs := make([]error, len(sends))
	var g errgroup.Group
	for i, s := range sends {
		report.Attempted = append(report.Attempted, s.channel)
		g.Go(func() error {
			errs[i] = s.fn(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var joined []error
	for i, err := range errs {
		if err != nil {
			report.Failed[sends[i].channel] = err
			joined = append(joined, fmt.Errorf("%s: %w", sends[i].channel, err))
			log.Warnf("[Notify] %s delivery of %s to %s failed: %v", sends[i].channel, n.ID, n.UserID, err)
		}
	}
	return report, errors.Join(joined...)
}

// Processor adapts Deliver to the job queue.
func (d *Deliverer) Processor() jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		p, err := jobqueue.DeliverNotificationPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		if p.NotificationID == "" {
			return errors.New("deliver_notification job without notification_id")
		}
		_, err = d.Deliver(ctx, p.NotificationID)
		return err
	}
}

func smsText(n *models.Notification) string {
	text := []rune("Zintra: " + n.Title + ". " + n.Body)
	if len(text) <= smsMaxRunes {
		return string(text)
	}
	return string(text[:smsMaxRunes-3]) + "..."
}

func emailHTML(n *models.Notification, p *models.UserProfile) string {
	name := p.DisplayName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf(`<!DOCTYPE html><html><body style="font-family:sans-serif">`+
		`<p>Hi %s,</p><h2>%s</h2><p>%s</p>`+
		`<p style="color:#888;font-size:12px">You received this because of activity on your Zintra account.</p>`+
		`</body></html>`,
		html.EscapeString(name), html.EscapeString(n.Title), html.EscapeString(n.Body))
}
