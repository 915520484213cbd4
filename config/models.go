package config

import (
	"time"

	"github.com/shopspring/decimal"
)

type AppConfig struct {
	LNBackendType string `envconfig:"LN_BACKEND_TYPE" default:"LND"`
	Network       string `envconfig:"NETWORK" default:"mainnet"`

	// node-RPC
	LNDAddress      string `envconfig:"LND_ADDRESS"`
	LNDCertFile     string `envconfig:"LND_CERT_FILE"`
	LNDMacaroonFile string `envconfig:"LND_MACAROON_FILE"`

	// HTTP-API
	LNDRestURL          string `envconfig:"LND_REST_URL"`
	LNDRestCertFile     string `envconfig:"LND_REST_CERT_FILE"`
	LNDRestMacaroonFile string `envconfig:"LND_REST_MACAROON_FILE"`

	// socket-RPC
	CLNSocketPath string `envconfig:"CLN_SOCKET_PATH"`

	// custodial HTTP
	LNbitsURL        string `envconfig:"LNBITS_URL"`
	LNbitsAdminKey   string `envconfig:"LNBITS_ADMIN_KEY"`
	LNbitsInvoiceKey string `envconfig:"LNBITS_INVOICE_KEY"`
	LNbitsWebhookURL string `envconfig:"LNBITS_WEBHOOK_URL"`

	Workdir      string `envconfig:"WORK_DIR"`
	Port         string `envconfig:"PORT" default:"8080"`
	DatabaseUri  string `envconfig:"DATABASE_URI" default:"lngateway.db"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"4"`
	LogToFile    bool   `envconfig:"LOG_TO_FILE" default:"true"`
	LogDBQueries bool   `envconfig:"LOG_DB_QUERIES" default:"false"`

	MinPaymentSat         uint64 `envconfig:"MIN_PAYMENT_SAT" default:"1"`
	MaxPaymentSat         uint64 `envconfig:"MAX_PAYMENT_SAT" default:"100000"`
	DailyOutboundLimitSat uint64 `envconfig:"DAILY_OUTBOUND_LIMIT_SAT" default:"1000000"`
	MaxRoutingFeePercent  string `envconfig:"MAX_ROUTING_FEE_PERCENT" default:"1.0"`

	ConnectionTimeoutSeconds    int `envconfig:"CONNECTION_TIMEOUT_SECONDS" default:"30"`
	PaymentTimeoutSeconds       int `envconfig:"PAYMENT_TIMEOUT_SECONDS" default:"60"`
	PaymentPollIntervalMs       int `envconfig:"PAYMENT_POLL_INTERVAL_MS" default:"500"`
	DefaultInvoiceExpirySeconds int `envconfig:"DEFAULT_INVOICE_EXPIRY_SECONDS" default:"3600"`

	JWTSecret     string `envconfig:"JWT_SECRET"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	MCPServerName string `envconfig:"MCP_SERVER_NAME" default:"Lightning Gateway"`
}

func (c *AppConfig) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSeconds) * time.Second
}

func (c *AppConfig) PaymentTimeout() time.Duration {
	return time.Duration(c.PaymentTimeoutSeconds) * time.Second
}

func (c *AppConfig) PaymentPollInterval() time.Duration {
	return time.Duration(c.PaymentPollIntervalMs) * time.Millisecond
}

func (c *AppConfig) DefaultInvoiceExpiry() time.Duration {
	return time.Duration(c.DefaultInvoiceExpirySeconds) * time.Second
}

// RoutingFeePercent parses MAX_ROUTING_FEE_PERCENT. Validate rejects values
// that do not parse, so callers may ignore the error after validation.
func (c *AppConfig) RoutingFeePercent() (decimal.Decimal, error) {
	return decimal.NewFromString(c.MaxRoutingFeePercent)
}

// BackendConfig is the connection description for one adapter. It is built
// once at startup and never mutated afterwards.
type BackendConfig struct {
	Name              string
	Endpoint          string
	CertPath          string
	MacaroonPath      string
	APIKey            string
	InvoiceKey        string
	WebhookURL        string
	Network           string
	ConnectionTimeout time.Duration
}

type Config interface {
	Get(key string) (string, error)
	SetIgnore(key string, value string) error
	SetUpdate(key string, value string) error
	GetJWTSecret() (string, error)
	GetNetwork() string
	GetEnv() *AppConfig
	GetActiveBackend() string
	SetActiveBackend(name string) error
}
