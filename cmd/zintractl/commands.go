package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/bootstrap"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/cache"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/database"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/sms"
)

func loadEnv(cctx *cli.Context) {
	if f := cctx.String("env-file"); f != "" {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// services connects to the database (and Redis when reachable) and wires
// the service graph without starting any workers.
func services(cctx *cli.Context) *bootstrap.Services {
	loadEnv(cctx)
	database.SetupDatabase()
	cache.SetupCache()

	var rdb *redis.Client
	if cache.IsAvailable() {
		rdb = cache.GetClient()
	}
	return bootstrap.Build(cctx.Context, database.GetDB(), rdb)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var cmdSweep = &cli.Command{
	Name:  "sweep",
	Usage: "Expire overdue counter offers once (takes the sweep lease)",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "skip the lease; only when no server instance is running",
		},
	},
	Action: func(cctx *cli.Context) error {
		svc := services(cctx)
		run := svc.Sweeper.Run
		if cctx.Bool("force") {
			run = svc.Sweeper.Sweep
		}
		res, err := run(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var cmdDrain = &cli.Command{
	Name:  "drain",
	Usage: "Deliver pending outbox events and print the relay counters",
	Action: func(cctx *cli.Context) error {
		svc := services(cctx)
		res, err := svc.Relay.Drain(cctx.Context)
		if err != nil {
			return err
		}
		stats, err := svc.Relay.Stats(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{"result": res, "outbox": stats})
	},
}

var cmdRefresh = &cli.Command{
	Name:  "refresh",
	Usage: "Recompute capability snapshots",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:     "user",
			Usage:    "user id; repeat for several users",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		svc := services(cctx)
		for _, id := range cctx.StringSlice("user") {
			snap, err := svc.Capabilities.Refresh(cctx.Context, id)
			if err != nil {
				return fmt.Errorf("refresh %s: %w", id, err)
			}
			if err := printJSON(map[string]interface{}{"user_id": id, "snapshot": snap}); err != nil {
				return err
			}
		}
		return nil
	},
}

var cmdExpirePasses = &cli.Command{
	Name:  "expire-passes",
	Usage: "Close billing passes past their end date",
	Action: func(cctx *cli.Context) error {
		svc := services(cctx)
		n, err := svc.Billing.ExpirePasses(cctx.Context)
		if err != nil {
			return err
		}
		fmt.Printf("expired %d pass(es)\n", n)
		return nil
	},
}

var cmdProfile = &cli.Command{
	Name:  "profile",
	Usage: "Manage the contact details used for SMS and email delivery",
	Subcommands: []*cli.Command{
		{
			Name:  "set",
			Usage: "Create or replace a user's contact profile",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "user", Required: true},
				&cli.StringFlag{Name: "name"},
				&cli.StringFlag{Name: "email"},
				&cli.StringFlag{Name: "phone"},
				&cli.BoolFlag{Name: "sms", Value: true, Usage: "opt in to SMS"},
				&cli.BoolFlag{Name: "email-opt-in", Value: true, Usage: "opt in to email"},
			},
			Action: func(cctx *cli.Context) error {
				phone := strings.TrimSpace(cctx.String("phone"))
				if phone != "" {
					normalized, err := sms.NormalizePhone(phone)
					if err != nil {
						return fmt.Errorf("%s: %w", phone, err)
					}
					phone = normalized
				}
				return profileRepo(cctx).Upsert(&models.UserProfile{
					UserID:      cctx.String("user"),
					DisplayName: cctx.String("name"),
					Email:       strings.TrimSpace(cctx.String("email")),
					Phone:       phone,
					SMSOptIn:    cctx.Bool("sms"),
					EmailOptIn:  cctx.Bool("email-opt-in"),
				})
			},
		},
		{
			Name:      "show",
			Usage:     "Print a user's contact profile",
			ArgsUsage: "<user-id>",
			Action: func(cctx *cli.Context) error {
				if cctx.NArg() != 1 {
					return cli.Exit("usage: zintractl profile show <user-id>", 2)
				}
				p, err := profileRepo(cctx).GetByUserID(cctx.Args().First())
				if err != nil {
					return err
				}
				return printJSON(p)
			},
		},
	},
}

func profileRepo(cctx *cli.Context) repository.ProfileRepository {
	loadEnv(cctx)
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())
	return repository.GetGlobalFactory().ForContext(cctx.Context).Profile
}
