package bootstrap

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/billing"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/capabilities"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/mail"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/negotiation"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/notify"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/objectstore"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/paymentlog"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sms"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sweeper"
)

// Task names understood by the manager and zintractl.
const (
	TaskExpirySweep = "negotiation_expiry_sweep"
	TaskOutboxDrain = "outbox_drain"
	TaskPassExpiry  = "billing_pass_expiry"
)

// Services is the wired service graph shared by the server and the CLI.
type Services struct {
	DB    *gorm.DB
	Queue *jobqueue.Queue

	Relay        *outbox.Relay
	Negotiation  *negotiation.Service
	Sweeper      *sweeper.Sweeper
	Capabilities *capabilities.Service
	Billing      *billing.Service
	Deliverer    *notify.Deliverer
}

// Build wires every service from the environment. rdb may be nil, in which
// case the job queue is off and the db backends are used for leases and the
// capability cache.
func Build(ctx context.Context, db *gorm.DB, rdb *redis.Client) *Services {
	s := &Services{DB: db}

	var jobs jobqueue.Enqueuer
	if rdb != nil {
		s.Queue = jobqueue.NewQueue(rdb, jobqueue.WorkerCount())
		jobs = s.Queue
	} else {
		log.Warn("[Bootstrap] Redis unavailable: job queue disabled, external delivery off")
	}

	s.Relay = outbox.NewRelay(db)
	s.Relay.Register(outbox.TopicNotificationCreate, notify.OutboxHandler(jobs))
	s.Relay.Register(outbox.TopicQuoteRevisionCreate, negotiation.RevisionHandler())

	capCfg := capabilities.LoadConfig()
	var store capabilities.Store = capabilities.NewGormStore(db, capCfg.TTL)
	if capCfg.Backend == capabilities.BackendRedis && rdb != nil {
		store = capabilities.NewRedisStore(rdb, env.GetEnvDuration("CAPABILITY_RETENTION", 24*time.Hour))
	}
	s.Capabilities = capabilities.NewService(db, store, capCfg, jobs)

	s.Billing = billing.NewService(db, billingDeps(ctx, db, s.Capabilities))

	s.Negotiation = negotiation.NewService(db, s.Relay)
	if signer := attachmentSigner(ctx); signer != nil {
		s.Negotiation.WithAttachments(signer)
	}

	swCfg := sweeper.LoadConfig()
	var locker sweeper.Locker = sweeper.NewDBLocker(db)
	if swCfg.Backend == sweeper.LeaseBackendRedis && rdb != nil {
		locker = sweeper.NewRedisLocker(rdb)
	}
	s.Sweeper = sweeper.New(db, locker, s.Relay, swCfg)

	s.Deliverer = notify.NewDeliverer(db, smsSender(), mailSender())
	if s.Queue != nil {
		s.Queue.Register(jobqueue.JobTypeDeliverNotification, s.Deliverer.Processor())
		s.Queue.Register(jobqueue.JobTypeRefreshCapabilities, s.Capabilities.Processor())
	}
	return s
}

// Tasks are the periodic jobs the manager runs.
func (s *Services) Tasks() []jobqueue.Task {
	return []jobqueue.Task{
		{
			Name:     TaskExpirySweep,
			Interval: sweeper.LoadConfig().Interval,
			Run: func(ctx context.Context) error {
				_, err := s.Sweeper.Run(ctx)
				return err
			},
		},
		{
			Name:     TaskOutboxDrain,
			Interval: env.GetEnvDuration("OUTBOX_INTERVAL", 15*time.Second),
			Run: func(ctx context.Context) error {
				_, err := s.Relay.Drain(ctx)
				return err
			},
		},
		{
			Name:     TaskPassExpiry,
			Interval: env.GetEnvDuration("PASS_EXPIRY_INTERVAL", time.Hour),
			Run: func(ctx context.Context) error {
				n, err := s.Billing.ExpirePasses(ctx)
				if n > 0 {
					log.Infof("[Billing] Expired %d pass(es)", n)
				}
				return err
			},
		},
	}
}

func billingDeps(ctx context.Context, db *gorm.DB, caps *capabilities.Service) billing.Deps {
	deps := billing.Deps{
		Mpesa:        billing.NewDarajaClient(billing.LoadMpesaConfig()),
		Capabilities: caps,
	}

	pcfg := billing.LoadPesapalConfig()
	deps.PesapalSecret = pcfg.ConsumerSecret
	if pcfg.ConsumerKey != "" && pcfg.ConsumerSecret != "" {
		deps.Pesapal = billing.NewPesapalClient(pcfg)
	} else {
		log.Warn("[Bootstrap] PesaPal not configured: webhook statuses are taken as sent")
	}

	sink, err := paymentlog.New(ctx, paymentlog.LoadConfig(), db)
	if err != nil {
		log.Errorf("[Bootstrap] Payment log sink: %v; falling back to the database", err)
		sink = paymentlog.NewGormSink(db)
	}
	deps.PaymentLogs = sink
	return deps
}

func attachmentSigner(ctx context.Context) negotiation.AttachmentSigner {
	cfg, err := objectstore.LoadConfig()
	if err != nil {
		log.Errorf("[Bootstrap] Object store config: %v; attachments disabled", err)
		return nil
	}
	if !cfg.IsEnabled() {
		log.Info("[Bootstrap] S3_BUCKET_NAME not set; attachments disabled")
		return nil
	}
	store, err := objectstore.NewStore(ctx, cfg)
	if err != nil {
		log.Errorf("[Bootstrap] Object store: %v; attachments disabled", err)
		return nil
	}
	return store
}

func smsSender() notify.SMSSender {
	cfg := sms.LoadConfig()
	if !cfg.Enabled() {
		log.Info("[Bootstrap] TextSMS not configured; SMS delivery disabled")
		return nil
	}
	return sms.NewClient(cfg)
}

func mailSender() notify.MailSender {
	cfg := mail.LoadConfig()
	if !cfg.Enabled() {
		log.Info("[Bootstrap] SMTP not configured; email delivery disabled")
		return nil
	}
	return mail.NewSMTPMailer(cfg)
}
