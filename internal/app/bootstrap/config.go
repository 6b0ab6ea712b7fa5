// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for LibraryHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, fine_per_day, etc.
//   - Environment variables: LIBRARYHUB_MONGO_URI, LIBRARYHUB_FINE_PER_DAY, etc.
//   - Command-line flags: --mongo_uri, --fine_per_day, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "libraryhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	// Lending rules
	{Name: "max_books_per_user", Default: 3, Desc: "Maximum books a user may hold at once"},
	{Name: "fine_per_day", Default: 10, Desc: "Late fine per day, in whole currency units"},
	{Name: "borrow_limit_days", Default: 14, Desc: "Default loan period in days"},
	{Name: "membership_days", Default: 365, Desc: "Days a membership payment extends membership"},
	{Name: "currency", Default: "INR", Desc: "Currency code for fines and payments"},

	// Identity
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for bearer tokens (32+ chars)"},
	{Name: "jwt_issuer", Default: "libraryhub", Desc: "Expected token issuer (blank accepts any)"},

	// Gateways
	{Name: "razorpay_key_id", Default: "", Desc: "Razorpay key id"},
	{Name: "razorpay_key_secret", Default: "", Desc: "Razorpay key secret (enables Razorpay)"},
	{Name: "razorpay_base_url", Default: "", Desc: "Razorpay API base URL override"},
	{Name: "stripe_secret_key", Default: "", Desc: "Stripe secret key (enables Stripe)"},
	{Name: "stripe_base_url", Default: "", Desc: "Stripe API base URL override"},
	{Name: "gateway_timeout", Default: "10s", Desc: "Timeout for a single gateway call"},
	{Name: "payment_rate_limit", Default: 30, Desc: "Payment requests per minute per user"},
	{Name: "payment_rate_burst", Default: 5, Desc: "Payment request burst per user"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "library@libraryhub.local", Desc: "From email address"},
	{Name: "mail_from_name", Default: "LibraryHub", Desc: "From display name"},
	{Name: "notify_workers", Default: 2, Desc: "Notification sender goroutines"},
	{Name: "notify_queue_size", Default: 100, Desc: "Pending notifications kept before dropping"},

	// Receipts
	{Name: "college_name", Default: "LibraryHub College", Desc: "Name printed on receipts"},
	{Name: "receipts_dir", Default: "./receipts", Desc: "Directory receipts are written to"},
	{Name: "receipts_url", Default: "/receipts", Desc: "URL prefix receipts are served under"},

	// Manual transfer details
	{Name: "college_upi_id", Default: "", Desc: "UPI id for manual payments"},
	{Name: "college_upi_name", Default: "", Desc: "UPI payee name"},
	{Name: "college_bank_name", Default: "", Desc: "Bank name for transfers"},
	{Name: "college_account_holder", Default: "", Desc: "Bank account holder"},
	{Name: "college_account_no", Default: "", Desc: "Bank account number"},
	{Name: "college_ifsc", Default: "", Desc: "Bank IFSC code"},

	// Background work and tracing
	{Name: "overdue_sweep_interval", Default: "1h", Desc: "How often borrowed records are checked for overdue"},
	{Name: "otel_endpoint", Default: "", Desc: "OTLP/HTTP endpoint for traces (blank disables)"},

	// Audit logging settings
	{Name: "audit_log_circulation", Default: "all", Desc: "Circulation event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_payments", Default: "all", Desc: "Payment event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of the admin user (promotes/creates on startup)"},
	{Name: "admin_name", Default: "Library Admin", Desc: "Name used when the admin user is created"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// LIBRARYHUB_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LIBRARYHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		MaxBooksPerUser: appValues.Int("max_books_per_user"),
		FinePerDay:      int64(appValues.Int("fine_per_day")),
		BorrowDays:      appValues.Int("borrow_limit_days"),
		MembershipDays:  appValues.Int("membership_days"),
		Currency:        strings.ToUpper(appValues.String("currency")),

		JWTSecret: appValues.String("jwt_secret"),
		JWTIssuer: appValues.String("jwt_issuer"),

		RazorpayKeyID:     appValues.String("razorpay_key_id"),
		RazorpayKeySecret: appValues.String("razorpay_key_secret"),
		RazorpayBaseURL:   appValues.String("razorpay_base_url"),
		StripeSecretKey:   appValues.String("stripe_secret_key"),
		StripeBaseURL:     appValues.String("stripe_base_url"),
		GatewayTimeout:    appValues.Duration("gateway_timeout", 10*time.Second),
		PaymentRateLimit:  appValues.Int("payment_rate_limit"),
		PaymentRateBurst:  appValues.Int("payment_rate_burst"),

		MailSMTPHost:    appValues.String("mail_smtp_host"),
		MailSMTPPort:    appValues.Int("mail_smtp_port"),
		MailSMTPUser:    appValues.String("mail_smtp_user"),
		MailSMTPPass:    appValues.String("mail_smtp_pass"),
		MailFrom:        appValues.String("mail_from"),
		MailFromName:    appValues.String("mail_from_name"),
		NotifyWorkers:   appValues.Int("notify_workers"),
		NotifyQueueSize: appValues.Int("notify_queue_size"),

		CollegeName: appValues.String("college_name"),
		ReceiptsDir: appValues.String("receipts_dir"),
		ReceiptsURL: appValues.String("receipts_url"),

		CollegeUPIID:         appValues.String("college_upi_id"),
		CollegeUPIName:       appValues.String("college_upi_name"),
		CollegeBankName:      appValues.String("college_bank_name"),
		CollegeAccountHolder: appValues.String("college_account_holder"),
		CollegeAccountNo:     appValues.String("college_account_no"),
		CollegeIFSC:          appValues.String("college_ifsc"),

		OverdueSweepInterval: appValues.Duration("overdue_sweep_interval", time.Hour),
		OTelEndpoint:         appValues.String("otel_endpoint"),

		AuditLogCirculation: appValues.String("audit_log_circulation"),
		AuditLogPayments:    appValues.String("audit_log_payments"),

		AdminEmail: appValues.String("admin_email"),
		AdminName:  appValues.String("admin_name"),
	}

	return coreCfg, appCfg, nil
}

var auditModes = map[string]bool{"all": true, "db": true, "log": true, "off": true}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Every problem found is reported, not just the first.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}
	if strings.TrimSpace(appCfg.MongoDatabase) == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if strings.TrimSpace(appCfg.JWTSecret) == "" {
		errs = append(errs, errors.New("jwt_secret is required"))
	}

	positive := []struct {
		name string
		v    int64
	}{
		{"max_books_per_user", int64(appCfg.MaxBooksPerUser)},
		{"fine_per_day", appCfg.FinePerDay},
		{"borrow_limit_days", int64(appCfg.BorrowDays)},
		{"membership_days", int64(appCfg.MembershipDays)},
		{"payment_rate_limit", int64(appCfg.PaymentRateLimit)},
		{"payment_rate_burst", int64(appCfg.PaymentRateBurst)},
		{"notify_workers", int64(appCfg.NotifyWorkers)},
		{"notify_queue_size", int64(appCfg.NotifyQueueSize)},
	}
	for _, p := range positive {
		if p.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", p.name, p.v))
		}
	}
	if appCfg.GatewayTimeout <= 0 {
		errs = append(errs, errors.New("gateway_timeout must be positive"))
	}
	if appCfg.OverdueSweepInterval <= 0 {
		errs = append(errs, errors.New("overdue_sweep_interval must be positive"))
	}
	if appCfg.RazorpayKeySecret != "" && appCfg.RazorpayKeyID == "" {
		errs = append(errs, errors.New("razorpay_key_id is required when razorpay_key_secret is set"))
	}
	if !strings.HasPrefix(appCfg.ReceiptsURL, "/") {
		errs = append(errs, fmt.Errorf("receipts_url must start with '/', got %q", appCfg.ReceiptsURL))
	}
	for name, mode := range map[string]string{
		"audit_log_circulation": appCfg.AuditLogCirculation,
		"audit_log_payments":    appCfg.AuditLogPayments,
	} {
		if !auditModes[mode] {
			errs = append(errs, fmt.Errorf("%s must be all, db, log or off, got %q", name, mode))
		}
	}

	return errors.Join(errs...)
}
