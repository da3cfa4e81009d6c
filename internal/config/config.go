// Package config centralizes process configuration. All tunables are sourced
// from command-line flags with environment-variable fallbacks; a .env file in
// the working directory seeds the environment first (via godotenv, so the
// file format is never parsed by hand).
//
// Typical usage:
//
//	cfg, err := config.Load() // reads .env, os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-method=rest"})
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultSourceURL is the published registrations archive from the
// Commissioner of Lobbying of Canada.
const DefaultSourceURL = "https://lobbycanada.gc.ca/media/zwcjycef/registrations_enregistrements_ocl_cal.zip"

// DefaultTable is the staging relation receiving every run's rows.
const DefaultTable = "lobby_staging"

// Delivery mechanisms for direct-connection methods.
const (
	DeliveryCopy   = "copy"
	DeliveryInsert = "insert"
)

// Config holds all process configuration. Fields are plain values so the
// struct can be copied freely after construction.
type Config struct {
	// Source and destination identity.
	SourceURL string // archive URL
	Table     string // staging table name

	// Method selects the connection method: auto, local, remote, or rest.
	Method string
	// Delivery selects the direct-connection mechanism: copy or insert.
	Delivery string

	// Extraction controls.
	MemberSubstring string   // required substring of the archive member name; empty = first member
	Columns         []string // fixed source columns to keep (exact header names); empty = all
	DateColumn      string   // designated publication-date source column (fixed-column mode)

	// Destination coordinates.
	SupabaseURL string // endpoint identifier
	ServiceKey  string // service credential
	LocalDSN    string // local development database

	// Tunables.
	BatchSize int // rows per batch; 0 = per-delivery default

	// Metrics.
	MetricsBackend string
	PushgatewayURL string
}

// LoadFromArgs builds a Config by defining flags on fs, wiring each flag to
// an environment-variable fallback via getenv, then parsing args.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOr := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOr := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}

	fs.StringVar(&cfg.SourceURL, "url", envOr("SOURCE_URL", DefaultSourceURL), "Archive URL")
	fs.StringVar(&cfg.Table, "table", envOr("STAGING_TABLE", DefaultTable), "Staging table name")
	fs.StringVar(&cfg.Method, "method", envOr("CONNECT_METHOD", "auto"), "Connection method: auto, local, remote, or rest")
	fs.StringVar(&cfg.Delivery, "delivery", envOr("DELIVERY", DeliveryCopy), "Direct-connection delivery: copy or insert")
	fs.StringVar(&cfg.MemberSubstring, "member-substring", envOr("MEMBER_SUBSTRING", ""), "Required substring of the archive member name")

	var columnsFlag string
	fs.StringVar(&columnsFlag, "columns", envOr("SOURCE_COLUMNS", ""), "Comma-separated source columns to keep (exact header names)")
	fs.StringVar(&cfg.DateColumn, "date-column", envOr("DATE_COLUMN", ""), "Designated publication-date source column (requires -columns)")

	fs.StringVar(&cfg.SupabaseURL, "supabase-url", getenv("SUPABASE_URL"), "Endpoint identifier")
	fs.StringVar(&cfg.ServiceKey, "service-key", getenv("SUPABASE_SERVICE_KEY"), "Service credential")
	fs.StringVar(&cfg.LocalDSN, "local-dsn", envOr("LOCAL_DSN", ""), "Local development database DSN")

	fs.IntVar(&cfg.BatchSize, "batch-size", intEnvOr("BATCH_SIZE", 0), "Rows per batch (0 = per-delivery default)")

	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOr("METRICS_BACKEND", "none"), "Metrics backend: pushgateway or none")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", envOr("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if columnsFlag != "" {
		for _, c := range strings.Split(columnsFlag, ",") {
			if c = strings.TrimSpace(c); c != "" {
				cfg.Columns = append(cfg.Columns, c)
			}
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is the production entry point. It loads a .env file when present,
// then wires flags to the process flag set and environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // absence of .env is not an error
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

func (c *Config) validate() error {
	switch c.Method {
	case "auto", "local", "remote", "rest":
	default:
		return fmt.Errorf("invalid method %q (want auto, local, remote, or rest)", c.Method)
	}
	switch c.Delivery {
	case DeliveryCopy, DeliveryInsert:
	default:
		return fmt.Errorf("invalid delivery %q (want copy or insert)", c.Delivery)
	}
	if c.DateColumn != "" && len(c.Columns) == 0 {
		return fmt.Errorf("-date-column requires -columns")
	}
	if len(c.Columns) > 0 && c.DateColumn == "" {
		return fmt.Errorf("-columns requires -date-column")
	}
	switch c.Method {
	case "remote", "rest":
		if c.SupabaseURL == "" || c.ServiceKey == "" {
			return fmt.Errorf("method %q requires SUPABASE_URL and SUPABASE_SERVICE_KEY", c.Method)
		}
	}
	return nil
}

// EffectiveBatchSize resolves the batch size for the chosen delivery path:
// the COPY path flushes every 10000 rows, record-insert paths every 1000.
func (c *Config) EffectiveBatchSize(bulkCopy bool) int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	if bulkCopy {
		return 10000
	}
	return 1000
}
