package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/parkpro/service-core-go/internal/booking"
	bookingrepo "github.com/ovaphlow/parkpro/service-core-go/internal/booking/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/config"
	"github.com/ovaphlow/parkpro/service-core-go/internal/fastag"
	fastagrepo "github.com/ovaphlow/parkpro/service-core-go/internal/fastag/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/identity"
	"github.com/ovaphlow/parkpro/service-core-go/internal/notify"
	"github.com/ovaphlow/parkpro/service-core-go/internal/parking"
	parkingrepo "github.com/ovaphlow/parkpro/service-core-go/internal/parking/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/router"
	"github.com/ovaphlow/parkpro/service-core-go/internal/token"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user"
	userrepo "github.com/ovaphlow/parkpro/service-core-go/internal/user/repo"
	"github.com/ovaphlow/parkpro/service-core-go/internal/verification"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/database"
	"github.com/ovaphlow/parkpro/service-core-go/pkg/utilities"
)

const shutdownGrace = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

type repos struct {
	users    *userrepo.UserRepo
	parking  *parkingrepo.ParkingRepo
	bookings *bookingrepo.BookingRepo
	fastag   *fastagrepo.FastagRepo
}

func newRepos(db *sqlx.DB) repos {
	return repos{
		users:    userrepo.NewUserRepo(db),
		parking:  parkingrepo.NewParkingRepo(db),
		bookings: bookingrepo.NewBookingRepo(db),
		fastag:   fastagrepo.NewFastagRepo(db),
	}
}

// migrators lists tables in dependency order.
func (r repos) migrators() []database.Migrator {
	return []database.Migrator{r.users, r.parking, r.bookings, r.fastag}
}

func newSender(cfg config.SMTP, logger *zap.SugaredLogger) (notify.Sender, error) {
	if cfg.Host == "" {
		logger.Warn("SMTP_HOST not set; notifications will only be logged")
		return notify.NewLogSender(logger), nil
	}
	return notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Infow("starting parkpro api", "version", version, "addr", cfg.HTTPAddr)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()

	rs := newRepos(db)
	if err := database.EnsureSchema(ctx, rs.migrators()...); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "ensure schema").Wrap(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sender, err := newSender(cfg.SMTP, sugar)
	if err != nil {
		return oops.Code("SMTP_CONFIG_INVALID").Wrap(err)
	}
	dispatcher := notify.NewDispatcher(sender, sugar.Named("notify"), notify.NewMetrics(reg), notify.DispatcherConfig{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		SendTimeout: cfg.Notify.SendTimeout,
	})

	codes := verification.NewRegistry(
		verification.WithTTL(cfg.Recovery.CodeTTL),
		verification.WithCodeLength(cfg.Recovery.CodeLength),
	)
	go codes.RunSweeper(ctx, cfg.Recovery.SweepInterval)

	ids := utilities.NewIDGenerator(cfg.SnowflakeNode)

	// a nil *token.Service must not reach the interfaces below as a typed nil
	var (
		issuer user.TokenIssuer
		parser identity.TokenParser
	)
	if ts := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL); ts != nil {
		issuer, parser = ts, ts
	} else {
		sugar.Warn("AUTH_JWT_SECRET not set; login will not issue access tokens")
	}

	users := user.NewUserService(rs.users, user.NewBcryptHasher(cfg.Auth.BcryptCost, sugar), codes, dispatcher, ids, sugar.Named("user"))
	handler := router.RegisterRoutes(sugar, router.Deps{
		Users:    user.NewHandler(users, issuer, sugar),
		Parking:  parking.NewHandler(parking.NewService(rs.parking, ids), sugar),
		Bookings: booking.NewHandler(booking.NewService(rs.bookings, ids), sugar),
		Fastag:   fastag.NewHandler(fastag.NewService(rs.fastag, ids), sugar),
		Tokens:   parser,
		Gatherer: reg,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			sugar.Errorw("http server failed", "err", err)
			runErr = oops.Code("HTTP_SERVER_FAILED").With("addr", cfg.HTTPAddr).Wrap(err)
		}
	}

	sugar.Info("shutting down")
	doneCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	// requests are done; flush what they queued
	if err := dispatcher.Close(doneCtx); err != nil {
		sugar.Warnw("notification queue not drained", "err", err)
	}
	sugar.Info("goodbye")
	return runErr
}
