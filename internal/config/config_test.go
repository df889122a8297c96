package config

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// Clear any environment variables to test defaults
	for _, key := range []string{
		"APP_ENV", "APP_HTTP_ADDR", "OPS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
		"ENVIRONMENTS_FILE", "DIRECTORY_SOURCE", "DIRECTORY_REFRESH_INTERVAL", "DB_DSN",
		"AWS_REGION", "EB_APPLICATION_NAME", "EB_ENVIRONMENT_PREFIX",
		"TRAFFIC_SPLIT_COOKIE_NAME", "BRANCH_COOKIE_NAME",
		"TRAFFIC_SPLIT_COOKIE_MAX_AGE", "BRANCH_COOKIE_MAX_AGE",
		"NO_COOKIE_PATH_PREFIXES", "NO_COOKIE_PATH_SUFFIXES",
		"BRANCH_LOOKUP_TIMEOUT", "BRANCH_BREAKER_FAILURES", "BRANCH_BREAKER_TIMEOUT",
		"UPSTREAM_SCHEME", "UPSTREAM_INSECURE_SKIP_VERIFY", "SELECTOR", "OPS_RATE_LIMIT_PER_IP",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.OpsAddr != ":9090" {
		t.Errorf("Expected OpsAddr=':9090', got '%s'", cfg.OpsAddr)
	}
	if cfg.DirectorySource != SourceStatic {
		t.Errorf("Expected DirectorySource='static', got '%s'", cfg.DirectorySource)
	}
	if cfg.DirectoryRefreshInterval != time.Minute {
		t.Errorf("Expected DirectoryRefreshInterval=1m, got %s", cfg.DirectoryRefreshInterval)
	}
	if cfg.EBApplicationName != "Hollowverse" || cfg.EBEnvironmentPrefix != "hollowverse-" {
		t.Errorf("Unexpected Beanstalk defaults: %s / %s", cfg.EBApplicationName, cfg.EBEnvironmentPrefix)
	}
	if cfg.TrafficSplitCookieName != "env" || cfg.BranchCookieName != "branch" {
		t.Errorf("Unexpected cookie names: %s / %s", cfg.TrafficSplitCookieName, cfg.BranchCookieName)
	}
	if cfg.TrafficSplitCookieMaxAge != 24*time.Hour {
		t.Errorf("Expected TrafficSplitCookieMaxAge=24h, got %s", cfg.TrafficSplitCookieMaxAge)
	}
	if cfg.BranchCookieMaxAge != 2*time.Hour {
		t.Errorf("Expected BranchCookieMaxAge=2h, got %s", cfg.BranchCookieMaxAge)
	}
	if !reflect.DeepEqual(cfg.NoCookiePathPrefixes, []string{"/static/", "/log/"}) {
		t.Errorf("Unexpected NoCookiePathPrefixes: %v", cfg.NoCookiePathPrefixes)
	}
	if len(cfg.NoCookiePathSuffixes) != 9 {
		t.Errorf("Expected 9 NoCookiePathSuffixes, got %v", cfg.NoCookiePathSuffixes)
	}
	if cfg.BranchLookupTimeout != 3*time.Second {
		t.Errorf("Expected BranchLookupTimeout=3s, got %s", cfg.BranchLookupTimeout)
	}
	if cfg.BranchBreakerFailures != 5 {
		t.Errorf("Expected BranchBreakerFailures=5, got %d", cfg.BranchBreakerFailures)
	}
	if cfg.UpstreamScheme != "https" || !cfg.UpstreamInsecureSkipVerify {
		t.Errorf("Unexpected upstream defaults: %s insecure=%v", cfg.UpstreamScheme, cfg.UpstreamInsecureSkipVerify)
	}
	if cfg.Selector != SelectorWeighted {
		t.Errorf("Expected Selector='weighted', got '%s'", cfg.Selector)
	}
	if cfg.OpsRateLimitPerIP != 60 {
		t.Errorf("Expected OpsRateLimitPerIP=60, got %d", cfg.OpsRateLimitPerIP)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_HTTP_ADDR", ":9999")
	t.Setenv("DIRECTORY_SOURCE", "postgres")
	t.Setenv("DB_DSN", "postgres://rm:rm@localhost:5432/rm")
	t.Setenv("TRAFFIC_SPLIT_COOKIE_MAX_AGE", "1h30m")
	t.Setenv("NO_COOKIE_PATH_PREFIXES", " /assets/ , ,/api/log/")
	t.Setenv("UPSTREAM_INSECURE_SKIP_VERIFY", "false")
	t.Setenv("SELECTOR", "fair")
	t.Setenv("BRANCH_BREAKER_FAILURES", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.DirectorySource != SourcePostgres || cfg.DatabaseDSN == "" {
		t.Errorf("Expected postgres source with DSN, got %s %q", cfg.DirectorySource, cfg.DatabaseDSN)
	}
	if cfg.TrafficSplitCookieMaxAge != 90*time.Minute {
		t.Errorf("Expected 1h30m, got %s", cfg.TrafficSplitCookieMaxAge)
	}
	if !reflect.DeepEqual(cfg.NoCookiePathPrefixes, []string{"/assets/", "/api/log/"}) {
		t.Errorf("Unexpected NoCookiePathPrefixes: %v", cfg.NoCookiePathPrefixes)
	}
	if cfg.UpstreamInsecureSkipVerify {
		t.Error("Expected UpstreamInsecureSkipVerify=false")
	}
	if cfg.Selector != SelectorFair {
		t.Errorf("Expected Selector='fair', got '%s'", cfg.Selector)
	}
	if cfg.BranchBreakerFailures != 9 {
		t.Errorf("Expected BranchBreakerFailures=9, got %d", cfg.BranchBreakerFailures)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		HTTPAddr:                 ":8080",
		OpsAddr:                  ":9090",
		EnvironmentsFile:         "environments.yaml",
		DirectorySource:          SourceStatic,
		DirectoryRefreshInterval: time.Minute,
		AWSRegion:                "us-east-1",
		EBApplicationName:        "Hollowverse",
		TrafficSplitCookieName:   "env",
		BranchCookieName:         "branch",
		TrafficSplitCookieMaxAge: 24 * time.Hour,
		BranchCookieMaxAge:       2 * time.Hour,
		BranchLookupTimeout:      3 * time.Second,
		BranchBreakerFailures:    5,
		BranchBreakerTimeout:     30 * time.Second,
		UpstreamScheme:           "https",
		Selector:                 SelectorWeighted,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown source", func(c *Config) { c.DirectorySource = "consul" }, "DIRECTORY_SOURCE"},
		{"postgres without DSN", func(c *Config) { c.DirectorySource = SourcePostgres }, "DB_DSN"},
		{"beanstalk without region", func(c *Config) {
			c.DirectorySource = SourceElasticBeanstalk
			c.AWSRegion = ""
		}, "AWS_REGION"},
		{"beanstalk without application", func(c *Config) {
			c.DirectorySource = SourceElasticBeanstalk
			c.EBApplicationName = ""
		}, "EB_APPLICATION_NAME"},
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }, "APP_HTTP_ADDR"},
		{"empty ops addr", func(c *Config) { c.OpsAddr = "" }, "OPS_ADDR"},
		{"empty environments file", func(c *Config) { c.EnvironmentsFile = "" }, "ENVIRONMENTS_FILE"},
		{"empty env cookie", func(c *Config) { c.TrafficSplitCookieName = "" }, "TRAFFIC_SPLIT_COOKIE_NAME"},
		{"same cookie names", func(c *Config) { c.BranchCookieName = "env" }, "BRANCH_COOKIE_NAME"},
		{"zero refresh interval", func(c *Config) { c.DirectoryRefreshInterval = 0 }, "DIRECTORY_REFRESH_INTERVAL"},
		{"negative cookie max age", func(c *Config) { c.BranchCookieMaxAge = -time.Second }, "BRANCH_COOKIE_MAX_AGE"},
		{"zero lookup timeout", func(c *Config) { c.BranchLookupTimeout = 0 }, "BRANCH_LOOKUP_TIMEOUT"},
		{"zero breaker failures", func(c *Config) { c.BranchBreakerFailures = 0 }, "BRANCH_BREAKER_FAILURES"},
		{"unknown selector", func(c *Config) { c.Selector = "round-robin" }, "SELECTOR"},
		{"bad scheme", func(c *Config) { c.UpstreamScheme = "ftp" }, "UPSTREAM_SCHEME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Expected valid config, got %v", err)
				}
				return
			}

			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Expected field %s, got %s (%s)", tt.wantField, verr.Field, verr.Message)
			}
		})
	}
}
