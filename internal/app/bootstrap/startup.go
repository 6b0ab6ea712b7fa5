// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/engine/circulation"
	"github.com/dalemusser/libraryhub/internal/app/engine/payments"
	auditstore "github.com/dalemusser/libraryhub/internal/app/store/audit"
	userstore "github.com/dalemusser/libraryhub/internal/app/store/users"
	"github.com/dalemusser/libraryhub/internal/app/system/auditlog"
	"github.com/dalemusser/libraryhub/internal/app/system/auth"
	"github.com/dalemusser/libraryhub/internal/app/system/gateway"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/notify"
	"github.com/dalemusser/libraryhub/internal/app/system/ratelimit"
	"github.com/dalemusser/libraryhub/internal/app/system/receipts"
	"github.com/dalemusser/libraryhub/internal/app/system/tasks"
	"github.com/dalemusser/libraryhub/internal/app/system/telemetry"
	"github.com/dalemusser/libraryhub/internal/app/system/timeouts"
	"github.com/dalemusser/libraryhub/internal/app/system/workers"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Version is reported to the trace exporter. Overridden at link time.
var Version = "dev"

// services are the long-lived collaborators built once in Startup and shared
// by BuildHandler and Shutdown.
type services struct {
	tokens      *auth.TokenManager
	users       *userstore.Store
	circulation *circulation.Engine
	payments    *payments.Engine
	receipts    *receipts.Store
	queue       *notify.Queue
	limiter     *ratelimit.Limiter
	scheduler   *workers.Scheduler
	telemetry   telemetry.ShutdownFunc
}

var svc *services

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It wires
// the engines to their collaborators and starts the background workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{Gateway: appCfg.GatewayTimeout})

	s, err := buildServices(ctx, appCfg, deps, logger)
	if err != nil {
		return err
	}

	if appCfg.AdminEmail != "" {
		adminCtx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		err := ensureAdmin(adminCtx, deps, appCfg.AdminEmail, appCfg.AdminName, logger)
		cancel()
		if err != nil {
			s.stop(context.Background(), logger)
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	s.queue.Start()
	s.scheduler.Start()
	svc = s
	return nil
}

func buildServices(ctx context.Context, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.MongoDatabase

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "libraryhub",
		Version:     Version,
		Endpoint:    appCfg.OTelEndpoint,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	tokens, err := auth.NewTokenManager(appCfg.JWTSecret, appCfg.JWTIssuer, 24*time.Hour, logger)
	if err != nil {
		return nil, err
	}
	// Role changes and deleted accounts apply on the next request.
	tokens.SetUserFetcher(userstore.NewFetcher(db))

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)
	queue := notify.NewQueue(mail, appCfg.NotifyWorkers, appCfg.NotifyQueueSize, logger)

	rcpts, err := receipts.New(appCfg.ReceiptsDir, appCfg.ReceiptsURL, appCfg.CollegeName, logger)
	if err != nil {
		return nil, err
	}

	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Circulation: appCfg.AuditLogCirculation,
		Payments:    appCfg.AuditLogPayments,
	})

	circ := circulation.New(circulation.Deps{
		DB:       db,
		Audit:    audit,
		Notifier: queue,
		Log:      logger.Named("circulation"),
	}, circulation.Config{
		MaxBooksPerUser: appCfg.MaxBooksPerUser,
		FinePerDay:      appCfg.FinePerDay,
		BorrowDays:      appCfg.BorrowDays,
		Currency:        appCfg.Currency,
	})

	pay := payments.New(payments.Deps{
		DB:       db,
		Gateways: buildGateways(appCfg, logger),
		Receipts: rcpts,
		Audit:    audit,
		Notifier: queue,
		Log:      logger.Named("payments"),
	}, payments.Config{
		Currency:       appCfg.Currency,
		MembershipDays: appCfg.MembershipDays,
		Transfer: payments.TransferDetails{
			UPIID:         appCfg.CollegeUPIID,
			UPIName:       appCfg.CollegeUPIName,
			BankName:      appCfg.CollegeBankName,
			AccountHolder: appCfg.CollegeAccountHolder,
			AccountNumber: appCfg.CollegeAccountNo,
			IFSC:          appCfg.CollegeIFSC,
		},
	})

	limiter := ratelimit.New(appCfg.PaymentRateLimit, appCfg.PaymentRateBurst)

	scheduler := workers.NewScheduler(logger.Named("workers"), timeouts.Long(),
		tasks.OverdueSweepJob(circ, logger, appCfg.OverdueSweepInterval),
		tasks.RateLimitSweepJob(limiter, logger),
	)

	return &services{
		tokens:      tokens,
		users:       userstore.New(db),
		circulation: circ,
		payments:    pay,
		receipts:    rcpts,
		queue:       queue,
		limiter:     limiter,
		scheduler:   scheduler,
		telemetry:   shutdownTracing,
	}, nil
}

// buildGateways enables each provider whose secret is configured.
func buildGateways(appCfg AppConfig, logger *zap.Logger) gateway.Set {
	set := gateway.Set{}
	if appCfg.RazorpayKeySecret != "" {
		set[gateway.MethodRazorpay] = gateway.NewRazorpay(gateway.RazorpayConfig{
			KeyID:     appCfg.RazorpayKeyID,
			KeySecret: appCfg.RazorpayKeySecret,
			BaseURL:   appCfg.RazorpayBaseURL,
		}, appCfg.GatewayTimeout, logger)
	}
	if appCfg.StripeSecretKey != "" {
		set[gateway.MethodStripe] = gateway.NewStripe(gateway.StripeConfig{
			SecretKey: appCfg.StripeSecretKey,
			BaseURL:   appCfg.StripeBaseURL,
		}, appCfg.GatewayTimeout, logger)
	}
	if len(set) == 0 {
		logger.Warn("no payment gateway configured; online payments are disabled")
	}
	return set
}

// stop halts the workers, drains the notification queue and flushes traces.
func (s *services) stop(ctx context.Context, logger *zap.Logger) error {
	s.scheduler.Stop()
	s.queue.Stop()
	if s.telemetry == nil {
		return nil
	}
	if err := s.telemetry(ctx); err != nil {
		logger.Warn("trace exporter shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// ensureAdmin makes sure the configured email belongs to an admin user,
// promoting an existing account or creating a new one.
func ensureAdmin(ctx context.Context, deps DBDeps, email, name string, logger *zap.Logger) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return errors.New("admin email is empty")
	}
	users := userstore.New(deps.MongoDatabase)

	existing, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already present", zap.String("email", email))
			return nil
		}
		if err := users.SetRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted user to admin",
			zap.String("email", email),
			zap.String("previous_role", existing.Role))
		return nil
	case !errors.Is(err, userstore.ErrNotFound):
		return err
	}

	if strings.TrimSpace(name) == "" {
		name = "Library Admin"
	}
	created, err := users.Create(ctx, models.User{Name: name, Email: email, Role: models.RoleAdmin})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Created concurrently by another instance.
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("created admin user", zap.String("email", email), zap.String("id", created.ID.Hex()))
	return nil
}
