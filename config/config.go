package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flokiorg/lngateway/constants"
	"github.com/flokiorg/lngateway/db"
	"github.com/flokiorg/lngateway/logger"
	"github.com/flokiorg/lngateway/utils"
)

const (
	jwtSecretKey     = "JWTSecret"
	activeBackendKey = "ActiveBackend"
)

type config struct {
	Env        *AppConfig
	db         *gorm.DB
	cache      map[string]string
	cacheMutex sync.Mutex
	jwtSecret  string
}

func NewConfig(env *AppConfig, db *gorm.DB) (*config, error) {
	cfg := &config{
		db:    db,
		cache: map[string]string{},
	}
	err := cfg.init(env)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *config) init(env *AppConfig) error {
	cfg.Env = env

	if err := env.Validate(); err != nil {
		return err
	}

	// the env always wins for the backend selection at startup; later
	// reconfiguration through SetActiveBackend persists until restart
	err := cfg.SetUpdate(activeBackendKey, env.LNBackendType)
	if err != nil {
		return err
	}

	jwtSecret := env.JWTSecret
	if jwtSecret == "" {
		generated, err := randomHex(32)
		if err != nil {
			logger.Logger.Error().Err(err).Msg("Failed to generate JWT secret")
			return err
		}
		err = cfg.SetIgnore(jwtSecretKey, generated)
		if err != nil {
			return err
		}
		jwtSecret, err = cfg.Get(jwtSecretKey)
		if err != nil {
			return err
		}
	}
	cfg.jwtSecret = jwtSecret

	return nil
}

func (cfg *config) GetEnv() *AppConfig {
	return cfg.Env
}

func (cfg *config) GetNetwork() string {
	return cfg.Env.Network
}

func (cfg *config) GetJWTSecret() (string, error) {
	if cfg.jwtSecret == "" {
		return "", errors.New("JWT secret not initialized")
	}
	return cfg.jwtSecret, nil
}

func (cfg *config) GetActiveBackend() string {
	value, err := cfg.Get(activeBackendKey)
	if err != nil || value == "" {
		return cfg.Env.LNBackendType
	}
	return value
}

func (cfg *config) SetActiveBackend(name string) error {
	if !slices.Contains(constants.GetBackendTypes(), name) {
		return fmt.Errorf("unsupported backend: %s", name)
	}
	return cfg.SetUpdate(activeBackendKey, name)
}

func (cfg *config) Get(key string) (string, error) {
	cfg.cacheMutex.Lock()
	defer cfg.cacheMutex.Unlock()

	if value, ok := cfg.cache[key]; ok {
		return value, nil
	}

	var userConfig db.UserConfig
	err := cfg.db.Where(&db.UserConfig{Key: key}).Limit(1).Find(&userConfig).Error
	if err != nil {
		return "", fmt.Errorf("failed to get configuration value: %w", err)
	}

	cfg.cache[key] = userConfig.Value
	return userConfig.Value, nil
}

// SetIgnore stores the value only if the key does not exist yet.
func (cfg *config) SetIgnore(key string, value string) error {
	userConfig := db.UserConfig{Key: key, Value: value}
	err := cfg.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoNothing: true,
	}).Create(&userConfig).Error
	if err != nil {
		logger.Logger.Error().Err(err).Str("key", key).Msg("Failed to save config")
		return err
	}
	cfg.invalidate(key)
	return nil
}

func (cfg *config) SetUpdate(key string, value string) error {
	userConfig := db.UserConfig{Key: key, Value: value}
	err := cfg.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&userConfig).Error
	if err != nil {
		logger.Logger.Error().Err(err).Str("key", key).Msg("Failed to update config")
		return err
	}
	cfg.invalidate(key)
	return nil
}

func (cfg *config) invalidate(key string) {
	cfg.cacheMutex.Lock()
	defer cfg.cacheMutex.Unlock()
	delete(cfg.cache, key)
}

// Validate checks that the selected backend has everything it needs to be
// constructed and that the policy limits are coherent.
func (c *AppConfig) Validate() error {
	if !slices.Contains(constants.GetBackendTypes(), c.LNBackendType) {
		return fmt.Errorf("unsupported LN_BACKEND_TYPE %q, expected one of %s",
			c.LNBackendType, strings.Join(constants.GetBackendTypes(), ", "))
	}

	if c.MaxPaymentSat > 0 && c.MinPaymentSat > c.MaxPaymentSat {
		return fmt.Errorf("MIN_PAYMENT_SAT (%d) exceeds MAX_PAYMENT_SAT (%d)", c.MinPaymentSat, c.MaxPaymentSat)
	}

	feePercent, err := c.RoutingFeePercent()
	if err != nil {
		return fmt.Errorf("invalid MAX_ROUTING_FEE_PERCENT: %w", err)
	}
	if feePercent.IsNegative() {
		return errors.New("MAX_ROUTING_FEE_PERCENT must not be negative")
	}

	if c.PaymentTimeoutSeconds <= 0 {
		return errors.New("PAYMENT_TIMEOUT_SECONDS must be positive")
	}
	if c.ConnectionTimeoutSeconds <= 0 {
		return errors.New("CONNECTION_TIMEOUT_SECONDS must be positive")
	}
	if c.PaymentPollIntervalMs <= 0 {
		return errors.New("PAYMENT_POLL_INTERVAL_MS must be positive")
	}

	return c.validateBackend(c.LNBackendType)
}

func (c *AppConfig) validateBackend(name string) error {
	switch name {
	case constants.BACKEND_LND:
		if c.LNDAddress == "" || c.LNDCertFile == "" || c.LNDMacaroonFile == "" {
			return errors.New("LND requires LND_ADDRESS, LND_CERT_FILE and LND_MACAROON_FILE")
		}
		if _, _, err := utils.ParseHostPort(c.LNDAddress); err != nil {
			return fmt.Errorf("invalid LND_ADDRESS: %w", err)
		}
	case constants.BACKEND_LND_REST:
		if c.LNDRestURL == "" || c.LNDRestMacaroonFile == "" {
			return errors.New("LND_REST requires LND_REST_URL and LND_REST_MACAROON_FILE")
		}
		if err := utils.ValidateHTTPURL(c.LNDRestURL); err != nil {
			return fmt.Errorf("invalid LND_REST_URL: %w", err)
		}
	case constants.BACKEND_CLN:
		if c.CLNSocketPath == "" {
			return errors.New("CLN requires CLN_SOCKET_PATH")
		}
	case constants.BACKEND_LNBITS:
		if c.LNbitsURL == "" || c.LNbitsAdminKey == "" {
			return errors.New("LNBITS requires LNBITS_URL and LNBITS_ADMIN_KEY")
		}
		if err := utils.ValidateHTTPURL(c.LNbitsURL); err != nil {
			return fmt.Errorf("invalid LNBITS_URL: %w", err)
		}
	}
	return nil
}

// BackendConfigs returns a config for every backend that has enough settings
// to be constructed. The active backend is always included so that a missing
// setting surfaces as an initialization failure in the registry.
func (c *AppConfig) BackendConfigs() map[string]BackendConfig {
	configs := map[string]BackendConfig{}
	base := BackendConfig{
		Network:           c.Network,
		ConnectionTimeout: c.ConnectionTimeout(),
	}

	if c.LNDAddress != "" || c.LNBackendType == constants.BACKEND_LND {
		cfg := base
		cfg.Name = constants.BACKEND_LND
		cfg.Endpoint = c.LNDAddress
		cfg.CertPath = c.LNDCertFile
		cfg.MacaroonPath = c.LNDMacaroonFile
		configs[cfg.Name] = cfg
	}
	if c.LNDRestURL != "" || c.LNBackendType == constants.BACKEND_LND_REST {
		cfg := base
		cfg.Name = constants.BACKEND_LND_REST
		cfg.Endpoint = c.LNDRestURL
		cfg.CertPath = c.LNDRestCertFile
		cfg.MacaroonPath = c.LNDRestMacaroonFile
		configs[cfg.Name] = cfg
	}
	if c.CLNSocketPath != "" || c.LNBackendType == constants.BACKEND_CLN {
		cfg := base
		cfg.Name = constants.BACKEND_CLN
		cfg.Endpoint = c.CLNSocketPath
		configs[cfg.Name] = cfg
	}
	if c.LNbitsURL != "" || c.LNBackendType == constants.BACKEND_LNBITS {
		cfg := base
		cfg.Name = constants.BACKEND_LNBITS
		cfg.Endpoint = c.LNbitsURL
		cfg.APIKey = c.LNbitsAdminKey
		cfg.InvoiceKey = c.LNbitsInvoiceKey
		cfg.WebhookURL = c.LNbitsWebhookURL
		configs[cfg.Name] = cfg
	}

	return configs
}

func randomHex(n int) (string, error) {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
