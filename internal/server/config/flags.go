package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string    HTTP bind address (e.g., ":8080")
//	-d string    PostgreSQL DSN, or memory://
//	-s string    token HMAC secret key
//	-b string    public base URL
//	-t duration  session lifetime (e.g., "168h")
//	-v duration  email verification token lifetime
//	-r duration  password reset token lifetime
//	-l float     rate limit, requests per second per IP
//	-u int       rate limit burst
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-b", "-t", "-v", "-r", "-l", "-u"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.BaseURL, "b", config.BaseURL, "public base URL")

	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "session lifetime")
	fs.DurationVar(&config.EmailVerificationTTL, "v", config.EmailVerificationTTL, "email verification token lifetime")
	fs.DurationVar(&config.ResetPasswordTTL, "r", config.ResetPasswordTTL, "password reset token lifetime")

	fs.Float64Var(&config.RateLimitRPS, "l", config.RateLimitRPS, "rate limit (requests per second per IP)")
	fs.IntVar(&config.RateLimitBurst, "u", config.RateLimitBurst, "rate limit burst")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
