package constants

import "time"

// shared constants used by multiple packages

const (
	BACKEND_LND      = "LND"      // node-RPC (gRPC)
	BACKEND_CLN      = "CLN"      // socket-RPC (Core Lightning unix socket)
	BACKEND_LND_REST = "LND_REST" // HTTP-API
	BACKEND_LNBITS   = "LNBITS"   // custodial HTTP
)

func GetBackendTypes() []string {
	return []string{
		BACKEND_LND,
		BACKEND_CLN,
		BACKEND_LND_REST,
		BACKEND_LNBITS,
	}
}

const (
	PAYMENT_DIRECTION_INCOMING = "incoming"
	PAYMENT_DIRECTION_OUTGOING = "outgoing"
)

const (
	EVENT_INVOICE_CREATED   = "invoice_created"
	EVENT_INVOICE_SETTLED   = "invoice_settled"
	EVENT_INVOICE_CANCELLED = "invoice_cancelled"
	EVENT_INVOICE_EXPIRED   = "invoice_expired"
	EVENT_PAYMENT_SUCCEEDED = "payment_succeeded"
	EVENT_PAYMENT_FAILED    = "payment_failed"
	EVENT_PAYMENT_TIMED_OUT = "payment_timed_out"
	EVENT_CHANNEL_OPENED    = "channel_open_requested"
	EVENT_CHANNEL_CLOSED    = "channel_close_requested"
	EVENT_GATEWAY_STARTED   = "gateway_started"
	EVENT_GATEWAY_STOPPED   = "gateway_stopped"

	EVENT_BACKEND_START_FAILED = "backend_start_failed"
)

const (
	DEFAULT_INVOICE_EXPIRY = 60 * time.Minute

	// the policy window for the outbound daily cap
	POLICY_WINDOW = 24 * time.Hour

	// polling backoff never waits longer than this between status checks
	MAX_POLL_INTERVAL = 5 * time.Second

	READ_RETRY_ATTEMPTS = 3
	READ_RETRY_BASE     = 200 * time.Millisecond
)

// payment hashes and preimages are 32 bytes, hex encoded
const PAYMENT_HASH_HEX_LENGTH = 64
