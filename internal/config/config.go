// Package config provides application configuration loading from environment variables and .env files.
// It uses viper for flexible configuration management with sensible defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hollowverse/releasemanager/internal/rollout"
)

// Directory sources and selectors accepted by Validate.
const (
	SourceStatic           = "static"
	SourceElasticBeanstalk = "elasticbeanstalk"
	SourcePostgres         = "postgres"

	SelectorWeighted = rollout.NameWeighted
	SelectorFair     = rollout.NameFair
)

// Config holds all application configuration loaded from environment variables or .env file.
// Configuration priority: environment variables > .env file > defaults.
type Config struct {
	AppEnv    string // Application environment (dev, staging, prod)
	HTTPAddr  string // Edge listener bind address (e.g., ":8080")
	OpsAddr   string // Ops API and metrics bind address
	LogLevel  string // zerolog level
	LogFormat string // json or console

	EnvironmentsFile         string        // YAML weight table (and static URLs)
	DirectorySource          string        // static, elasticbeanstalk or postgres
	DirectoryRefreshInterval time.Duration // How often environment URLs are re-read
	DatabaseDSN              string        // PostgreSQL connection string (postgres source)

	AWSRegion           string
	AWSAccessKeyID      string // Optional; default credential chain when empty
	AWSSecretAccessKey  string
	EBApplicationName   string // Elastic Beanstalk application
	EBEnvironmentPrefix string // Prefix of platform environment names, stripped on read

	TrafficSplitCookieName   string
	BranchCookieName         string
	TrafficSplitCookieMaxAge time.Duration
	BranchCookieMaxAge       time.Duration
	NoCookiePathPrefixes     []string // Normalized paths that never get Set-Cookie
	NoCookiePathSuffixes     []string

	BranchLookupTimeout   time.Duration // Per-lookup budget for branch previews
	BranchBreakerFailures int           // Consecutive failures that open the breaker
	BranchBreakerTimeout  time.Duration // How long the breaker stays open

	UpstreamScheme             string // Prepended to scheme-less environment URLs
	UpstreamInsecureSkipVerify bool

	Selector          string // weighted (i.i.d.) or fair (fixed window)
	OpsRateLimitPerIP int    // Requests per minute per IP on the ops API
}

// Load reads configuration from environment variables and .env file (if present).
// Environment variables take precedence over .env file values.
// Returns a Config struct with all values populated (either from env or defaults).
//
// Validation:
//
//	This function performs basic configuration loading but does NOT validate
//	configuration constraints (e.g., postgres source requires a DSN).
//	Use Validate() to check them.
func Load() (*Config, error) {
	viperInstance := viper.New()
	viperInstance.SetConfigFile(".env") // Optional; silently ignored if file doesn't exist
	_ = viperInstance.ReadInConfig()    // Ignore error - .env is optional
	viperInstance.AutomaticEnv()        // Read from environment variables

	setConfigDefaults(viperInstance)

	return &Config{
		AppEnv:    viperInstance.GetString("APP_ENV"),
		HTTPAddr:  viperInstance.GetString("APP_HTTP_ADDR"),
		OpsAddr:   viperInstance.GetString("OPS_ADDR"),
		LogLevel:  viperInstance.GetString("LOG_LEVEL"),
		LogFormat: viperInstance.GetString("LOG_FORMAT"),

		EnvironmentsFile:         viperInstance.GetString("ENVIRONMENTS_FILE"),
		DirectorySource:          viperInstance.GetString("DIRECTORY_SOURCE"),
		DirectoryRefreshInterval: viperInstance.GetDuration("DIRECTORY_REFRESH_INTERVAL"),
		DatabaseDSN:              viperInstance.GetString("DB_DSN"),

		AWSRegion:           viperInstance.GetString("AWS_REGION"),
		AWSAccessKeyID:      viperInstance.GetString("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey:  viperInstance.GetString("AWS_SECRET_ACCESS_KEY"),
		EBApplicationName:   viperInstance.GetString("EB_APPLICATION_NAME"),
		EBEnvironmentPrefix: viperInstance.GetString("EB_ENVIRONMENT_PREFIX"),

		TrafficSplitCookieName:   viperInstance.GetString("TRAFFIC_SPLIT_COOKIE_NAME"),
		BranchCookieName:         viperInstance.GetString("BRANCH_COOKIE_NAME"),
		TrafficSplitCookieMaxAge: viperInstance.GetDuration("TRAFFIC_SPLIT_COOKIE_MAX_AGE"),
		BranchCookieMaxAge:       viperInstance.GetDuration("BRANCH_COOKIE_MAX_AGE"),
		NoCookiePathPrefixes:     splitList(viperInstance.GetString("NO_COOKIE_PATH_PREFIXES")),
		NoCookiePathSuffixes:     splitList(viperInstance.GetString("NO_COOKIE_PATH_SUFFIXES")),

		BranchLookupTimeout:   viperInstance.GetDuration("BRANCH_LOOKUP_TIMEOUT"),
		BranchBreakerFailures: viperInstance.GetInt("BRANCH_BREAKER_FAILURES"),
		BranchBreakerTimeout:  viperInstance.GetDuration("BRANCH_BREAKER_TIMEOUT"),

		UpstreamScheme:             viperInstance.GetString("UPSTREAM_SCHEME"),
		UpstreamInsecureSkipVerify: viperInstance.GetBool("UPSTREAM_INSECURE_SKIP_VERIFY"),

		Selector:          viperInstance.GetString("SELECTOR"),
		OpsRateLimitPerIP: viperInstance.GetInt("OPS_RATE_LIMIT_PER_IP"),
	}, nil
}

// setConfigDefaults sets default values for all configuration options.
// These defaults are suitable for local development but should be overridden in production.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("APP_HTTP_ADDR", ":8080")
	v.SetDefault("OPS_ADDR", ":9090")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENVIRONMENTS_FILE", "environments.yaml")
	v.SetDefault("DIRECTORY_SOURCE", SourceStatic)
	v.SetDefault("DIRECTORY_REFRESH_INTERVAL", "1m")
	v.SetDefault("DB_DSN", "")

	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("EB_APPLICATION_NAME", "Hollowverse")
	v.SetDefault("EB_ENVIRONMENT_PREFIX", "hollowverse-")

	v.SetDefault("TRAFFIC_SPLIT_COOKIE_NAME", "env")
	v.SetDefault("BRANCH_COOKIE_NAME", "branch")
	v.SetDefault("TRAFFIC_SPLIT_COOKIE_MAX_AGE", "24h")
	v.SetDefault("BRANCH_COOKIE_MAX_AGE", "2h")
	v.SetDefault("NO_COOKIE_PATH_PREFIXES", "/static/,/log/")
	v.SetDefault("NO_COOKIE_PATH_SUFFIXES", ".js/,.css/,.map/,.png/,.jpg/,.svg/,.ico/,.woff/,.woff2/")

	v.SetDefault("BRANCH_LOOKUP_TIMEOUT", "3s")
	v.SetDefault("BRANCH_BREAKER_FAILURES", 5)
	v.SetDefault("BRANCH_BREAKER_TIMEOUT", "30s")

	v.SetDefault("UPSTREAM_SCHEME", "https")
	v.SetDefault("UPSTREAM_INSECURE_SKIP_VERIFY", true)

	v.SetDefault("SELECTOR", SelectorWeighted)
	v.SetDefault("OPS_RATE_LIMIT_PER_IP", 60)
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ValidationError represents a configuration validation error with details about what failed.
type ValidationError struct {
	Field   string // Name of the configuration field
	Message string // Human-readable error message
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation failed [%s]: %s", e.Field, e.Message)
}

// Validate checks the configuration at startup so misconfiguration fails
// fast instead of surfacing mid-request.
//
// Validation Rules:
//  1. DirectorySource must be one of: "static", "elasticbeanstalk", "postgres"
//  2. If DirectorySource is "postgres", DatabaseDSN must be non-empty
//  3. If DirectorySource is "elasticbeanstalk", AWSRegion and EBApplicationName must be non-empty
//  4. HTTPAddr, OpsAddr and EnvironmentsFile must be non-empty
//  5. Cookie names must be non-empty and distinct
//  6. All durations must be positive
//  7. Selector must be "weighted" or "fair"
//  8. UpstreamScheme must be "http" or "https"
//
// Returns:
//   - nil if configuration is valid
//   - ValidationError describing the first validation failure
func (c *Config) Validate() error {
	switch c.DirectorySource {
	case SourceStatic, SourceElasticBeanstalk, SourcePostgres:
	default:
		return ValidationError{
			Field:   "DIRECTORY_SOURCE",
			Message: fmt.Sprintf("must be 'static', 'elasticbeanstalk' or 'postgres', got '%s'", c.DirectorySource),
		}
	}

	if c.DirectorySource == SourcePostgres && c.DatabaseDSN == "" {
		return ValidationError{
			Field:   "DB_DSN",
			Message: "database DSN is required when DIRECTORY_SOURCE=postgres",
		}
	}

	if c.DirectorySource == SourceElasticBeanstalk {
		if c.AWSRegion == "" {
			return ValidationError{Field: "AWS_REGION", Message: "AWS region is required when DIRECTORY_SOURCE=elasticbeanstalk"}
		}
		if c.EBApplicationName == "" {
			return ValidationError{Field: "EB_APPLICATION_NAME", Message: "application name is required when DIRECTORY_SOURCE=elasticbeanstalk"}
		}
	}

	if c.HTTPAddr == "" {
		return ValidationError{Field: "APP_HTTP_ADDR", Message: "HTTP server address cannot be empty"}
	}
	if c.OpsAddr == "" {
		return ValidationError{Field: "OPS_ADDR", Message: "ops server address cannot be empty"}
	}
	if c.EnvironmentsFile == "" {
		return ValidationError{Field: "ENVIRONMENTS_FILE", Message: "environments file path cannot be empty"}
	}

	if c.TrafficSplitCookieName == "" {
		return ValidationError{Field: "TRAFFIC_SPLIT_COOKIE_NAME", Message: "cookie name cannot be empty"}
	}
	if c.BranchCookieName == "" {
		return ValidationError{Field: "BRANCH_COOKIE_NAME", Message: "cookie name cannot be empty"}
	}
	if c.TrafficSplitCookieName == c.BranchCookieName {
		return ValidationError{
			Field:   "BRANCH_COOKIE_NAME",
			Message: fmt.Sprintf("must differ from TRAFFIC_SPLIT_COOKIE_NAME ('%s')", c.TrafficSplitCookieName),
		}
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"DIRECTORY_REFRESH_INTERVAL", c.DirectoryRefreshInterval},
		{"TRAFFIC_SPLIT_COOKIE_MAX_AGE", c.TrafficSplitCookieMaxAge},
		{"BRANCH_COOKIE_MAX_AGE", c.BranchCookieMaxAge},
		{"BRANCH_LOOKUP_TIMEOUT", c.BranchLookupTimeout},
		{"BRANCH_BREAKER_TIMEOUT", c.BranchBreakerTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return ValidationError{Field: d.field, Message: fmt.Sprintf("must be a positive duration, got %s", d.value)}
		}
	}

	if c.BranchBreakerFailures <= 0 {
		return ValidationError{
			Field:   "BRANCH_BREAKER_FAILURES",
			Message: fmt.Sprintf("must be positive, got %d", c.BranchBreakerFailures),
		}
	}

	if c.Selector != SelectorWeighted && c.Selector != SelectorFair {
		return ValidationError{
			Field:   "SELECTOR",
			Message: fmt.Sprintf("must be 'weighted' or 'fair', got '%s'", c.Selector),
		}
	}

	if c.UpstreamScheme != "http" && c.UpstreamScheme != "https" {
		return ValidationError{
			Field:   "UPSTREAM_SCHEME",
			Message: fmt.Sprintf("must be 'http' or 'https', got '%s'", c.UpstreamScheme),
		}
	}

	return nil
}
