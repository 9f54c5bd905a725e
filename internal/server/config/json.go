package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for lifetime fields, which allows parsing both
// string values such as "1h" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files. Pointer fields distinguish "absent" from "false".
type JsonConfig struct {
	HTTPAddr             string         `json:"http_addr"`
	DatabaseDSN          string         `json:"database_dsn"`
	SecretKey            string         `json:"secret_key"`
	BaseURL              string         `json:"base_url"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	EmailVerificationTTL timex.Duration `json:"email_verification_ttl"`
	ResetPasswordTTL     timex.Duration `json:"reset_password_ttl"`
	RateLimitRPS         float64        `json:"rate_limit_rps"`
	RateLimitBurst       int            `json:"rate_limit_burst"`
	GitHubClientID       string         `json:"github_client_id"`
	GitHubClientSecret   string         `json:"github_client_secret"`
	GoogleClientID       string         `json:"google_client_id"`
	GoogleClientSecret   string         `json:"google_client_secret"`
	AccountLinking       *bool          `json:"account_linking"`
	TrustedProviders     []string       `json:"trusted_providers"`
	TrustProxy           *bool          `json:"trust_proxy"`
	LogLevel             string         `json:"log_level"`
}

// parseJson loads configuration values from the JSON file named by the -c or
// -config flag. Without either flag nothing is loaded. Only fields present
// (non-zero) in the file override the current values. If the file cannot be
// read or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.ConfigFilePath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.BaseURL, c.BaseURL)
	setString(&config.GitHubClientID, c.GitHubClientID)
	setString(&config.GitHubClientSecret, c.GitHubClientSecret)
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleClientSecret, c.GoogleClientSecret)
	setString(&config.LogLevel, c.LogLevel)

	if c.SessionTTL.Duration > 0 {
		config.SessionTTL = c.SessionTTL.Duration
	}
	if c.EmailVerificationTTL.Duration > 0 {
		config.EmailVerificationTTL = c.EmailVerificationTTL.Duration
	}
	if c.ResetPasswordTTL.Duration > 0 {
		config.ResetPasswordTTL = c.ResetPasswordTTL.Duration
	}
	if c.RateLimitRPS > 0 {
		config.RateLimitRPS = c.RateLimitRPS
	}
	if c.RateLimitBurst > 0 {
		config.RateLimitBurst = c.RateLimitBurst
	}
	if c.AccountLinking != nil {
		config.AccountLinking = *c.AccountLinking
	}
	if c.TrustedProviders != nil {
		config.TrustedProviders = c.TrustedProviders
	}
	if c.TrustProxy != nil {
		config.TrustProxy = *c.TrustProxy
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
