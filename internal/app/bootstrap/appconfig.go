// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (LIBRARYHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// keeps the framework-level settings (ports, TLS, logging, CORS); everything
// about lending, payments and collaborators lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Lending rules
	MaxBooksPerUser int
	FinePerDay      int64
	BorrowDays      int
	MembershipDays  int
	Currency        string

	// Identity: bearer tokens are HS256 JWTs signed with JWTSecret.
	JWTSecret string
	JWTIssuer string

	// Payment gateways. A gateway is enabled when its secret is set.
	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	StripeSecretKey   string
	StripeBaseURL     string
	GatewayTimeout    time.Duration

	// Payment endpoint throttling (per user)
	PaymentRateLimit int
	PaymentRateBurst int

	// Email/SMTP configuration
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Notification queue
	NotifyWorkers   int
	NotifyQueueSize int

	// Receipt documents
	CollegeName string
	ReceiptsDir string
	ReceiptsURL string

	// Manual transfer details shown to payers
	CollegeUPIID         string
	CollegeUPIName       string
	CollegeBankName      string
	CollegeAccountHolder string
	CollegeAccountNo     string
	CollegeIFSC          string

	// Background work
	OverdueSweepInterval time.Duration

	// Tracing
	OTelEndpoint string

	// Audit logging modes: all | db | log | off
	AuditLogCirculation string
	AuditLogPayments    string

	// Bootstrap admin (promoted or created on startup when set)
	AdminEmail string
	AdminName  string
}
