// Package config parses kvreactord's command-line arguments by hand,
// in the teacher's style (a manual switch over os.Args rather than the
// standard flag package; see main.go's argument loop), with one
// combined --help block describing the listener, store, executor,
// reactor and admin options in one place.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Config holds every runtime-tunable knob named in the expanded spec.
type Config struct {
	ListenAddr string

	StoreMaxBytes int

	LowWatermark  int
	HighWatermark int
	MaxQueueSize  int
	IdleTime      time.Duration

	AcceptRatePerSec float64
	AcceptBurst      int

	MultiThreaded bool
	Workers       int

	AdminMCPEnabled bool
	AdminMCPPort    int

	AuditLogCapacity int
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		ListenAddr:       ":8080",
		StoreMaxBytes:    64 * 1024 * 1024,
		LowWatermark:     4,
		HighWatermark:    16,
		MaxQueueSize:     256,
		IdleTime:         5 * time.Second,
		AcceptRatePerSec: 1000,
		AcceptBurst:      100,
		MultiThreaded:    false,
		Workers:          4,
		AdminMCPEnabled:  false,
		AdminMCPPort:     9877,
		AuditLogCapacity: 1000,
	}
}

// Parse walks args (typically os.Args[1:]) and returns a Config
// overriding Default with whatever flags were given. It returns
// showHelp=true when --help/-h was seen, in which case the caller
// should print Usage() and exit before touching cfg.
func Parse(args []string) (cfg Config, showHelp bool, err error) {
	cfg = Default()

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() (string, error) {
			if i+1 >= len(args) {
				return "", errors.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		switch arg {
		case "--help", "-h":
			return cfg, true, nil

		case "--listen":
			v, e := next()
			if e != nil {
				return cfg, false, e
			}
			cfg.ListenAddr = v

		case "--store-max-bytes":
			if err = scanInt(&cfg.StoreMaxBytes, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--low-watermark":
			if err = scanInt(&cfg.LowWatermark, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--high-watermark":
			if err = scanInt(&cfg.HighWatermark, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--max-queue-size":
			if err = scanInt(&cfg.MaxQueueSize, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--idle-time":
			v, e := next()
			if e != nil {
				return cfg, false, e
			}
			d, perr := time.ParseDuration(v)
			if perr != nil {
				return cfg, false, errors.Wrapf(perr, "--idle-time value %q", v)
			}
			cfg.IdleTime = d

		case "--accept-rate":
			v, e := next()
			if e != nil {
				return cfg, false, e
			}
			var rate float64
			if _, serr := fmt.Sscanf(v, "%f", &rate); serr != nil {
				return cfg, false, errors.Wrapf(serr, "--accept-rate value %q", v)
			}
			cfg.AcceptRatePerSec = rate

		case "--accept-burst":
			if err = scanInt(&cfg.AcceptBurst, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--multi-threaded":
			cfg.MultiThreaded = true

		case "--workers":
			if err = scanInt(&cfg.Workers, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--admin-mcp":
			cfg.AdminMCPEnabled = true

		case "--admin-mcp-port":
			if err = scanInt(&cfg.AdminMCPPort, &i, args, arg); err != nil {
				return cfg, false, err
			}

		case "--audit-log-capacity":
			if err = scanInt(&cfg.AuditLogCapacity, &i, args, arg); err != nil {
				return cfg, false, err
			}

		default:
			return cfg, false, errors.Errorf("unrecognized flag %q", arg)
		}
	}

	if cfg.LowWatermark > cfg.HighWatermark {
		return cfg, false, errors.Errorf("--low-watermark (%d) must not exceed --high-watermark (%d)", cfg.LowWatermark, cfg.HighWatermark)
	}

	return cfg, false, nil
}

func scanInt(dst *int, i *int, args []string, flag string) error {
	if *i+1 >= len(args) {
		return errors.Errorf("%s requires a value", flag)
	}
	*i++
	v := args[*i]
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return errors.Wrapf(err, "%s value %q", flag, v)
	}
	*dst = n
	return nil
}

// Usage returns the --help text.
func Usage() string {
	return `kvreactord - non-blocking key/value cache server

Usage: kvreactord [OPTIONS]

Options:
  --listen ADDR                Address to listen on (default: :8080)
  --store-max-bytes N          Store capacity in bytes, sum of key+value cost (default: 64MiB)
  --low-watermark N            Executor idle worker floor (default: 4)
  --high-watermark N           Executor worker ceiling (default: 16)
  --max-queue-size N           Executor pending-task queue bound (default: 256)
  --idle-time DURATION         Executor idle-worker trim timeout (default: 5s)
  --accept-rate N              Max new connections accepted per second (default: 1000)
  --accept-burst N             Accept-rate burst allowance (default: 100)
  --multi-threaded             Run the multi-threaded reactor instead of single-threaded
  --workers N                  Reactor worker thread count in multi-threaded mode (default: 4)
  --admin-mcp                  Enable the admin introspection MCP server
  --admin-mcp-port N           Admin MCP server port (default: 9877)
  --audit-log-capacity N       Recent-command ring buffer size (default: 1000)
  --help, -h                   Show this help message
`
}
