// lockerctl runs maintenance tasks against the locker service's store:
// expiry sweeps, catalog seeding and admin provisioning.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/locker-service/internal/bootstrap"
	"github.com/spec-kit/locker-service/internal/config"
	"github.com/spec-kit/locker-service/internal/observability"
	"github.com/spec-kit/locker-service/internal/service"
)

// errHelp reports that a subcommand printed its usage and should not run.
var errHelp = errors.New("help requested")

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, errHelp) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage()
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "sweep":
		return runSweep(ctx, cfg, logger, args[1:])
	case "seed":
		return runSeed(ctx, cfg, logger, args[1:])
	case "create-admin":
		return runCreateAdmin(ctx, cfg, logger, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func runSweep(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var once bool
	var interval int

	flagSet := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	flagSet.BoolVar(&once, "once", false, "run a single sweep and exit")
	flagSet.IntVar(&interval, "interval", cfg.Reservation.SweepIntervalSeconds, "seconds between sweeps")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if interval <= 0 {
		return errors.New("--interval must be positive")
	}
	cfg.Reservation.SweepIntervalSeconds = interval

	rt, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if once {
		removed, err := rt.Sweeper.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		fmt.Printf("expired %d reservation(s)\n", removed)
		return nil
	}

	logger.Info("sweeping", zap.Duration("interval", time.Duration(interval)*time.Second))
	rt.Sweeper.Run(ctx)
	return nil
}

func runSeed(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var path string

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVarP(&path, "file", "f", "", "YAML file listing lockers and admins")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}
	if path == "" {
		return errors.New("--file is required")
	}

	seed, err := loadSeedFile(path)
	if err != nil {
		return err
	}

	rt, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	report, err := applySeed(ctx, rt.Lockers, rt.Auth, seed)
	if err != nil {
		return err
	}
	fmt.Printf("lockers: %d created, %d skipped; admins: %d created, %d skipped\n",
		report.LockersCreated, report.LockersSkipped, report.AdminsCreated, report.AdminsSkipped)
	return nil
}

func runCreateAdmin(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	var in service.AdminInput

	flagSet := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	flagSet.StringVar(&in.StaffID, "staff-id", "", "staff id used to log in")
	flagSet.StringVar(&in.Password, "password", "", "initial password")
	flagSet.StringVar(&in.FullName, "fullname", "", "display name")
	flagSet.StringVar(&in.Email, "email", "", "contact email")
	flagSet.StringVar(&in.Phone, "phone", "", "contact phone")
	if err := parseFlags(flagSet, args); err != nil {
		return err
	}

	rt, err := open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	admin, err := rt.Auth.CreateAdmin(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("created admin %s (id %d)\n", admin.StaffID, admin.ID)
	return nil
}

func open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*bootstrap.Runtime, error) {
	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if !rt.Postgres.Enabled() {
		logger.Warn("POSTGRES_DSN is empty; changes are discarded when lockerctl exits")
	}
	return rt, nil
}

func parseFlags(flagSet *pflag.FlagSet, args []string) error {
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	if extra := flagSet.Args(); len(extra) > 0 {
		return fmt.Errorf("unexpected argument: %s", extra[0])
	}
	return nil
}

func printUsage() {
	fmt.Fprint(os.Stderr, `lockerctl manages the locker service store.

Usage:
  lockerctl sweep [--once] [--interval SECONDS]
  lockerctl seed --file lockers.yml
  lockerctl create-admin --staff-id ID --password PASS --fullname NAME --email EMAIL [--phone PHONE]

Configuration is read from the environment (and .env), as for the API server.
`)
}
