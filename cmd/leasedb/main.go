// Command leasedb runs SQL against a configured database through a leased
// connection and prints query rows as JSON lines.
//
//	leasedb [-config file] [-url u] [-driver d] [-user u] [-password p] query|exec|ping|stats [sql]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/shrek82/leasedb/config"
	"github.com/shrek82/leasedb/core"
	"github.com/shrek82/leasedb/logger"
	"github.com/shrek82/leasedb/middleware"
)

var errUsage = errors.New("usage: leasedb [flags] query|exec|ping|stats [sql]")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "leasedb:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("leasedb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv("LEASEDB_CONFIG"), "YAML config file")
	url := fs.String("url", "", "target URL, host[:port][/database] or jdbc: URL")
	driverName := fs.String("driver", "", "driver name, alias or JDBC class name")
	user := fs.String("user", "", "database user")
	password := fs.String("password", "", "database password")
	level := fs.String("log-level", "", "silent, error, warn or info")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	cmd, sql := fs.Arg(0), strings.Join(fs.Args()[1:], " ")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	overrides := map[*string]string{
		&cfg.Target.URL:      *url,
		&cfg.Target.Driver:   *driverName,
		&cfg.Target.User:     *user,
		&cfg.Target.Password: *password,
		&cfg.Log.Level:       *level,
	}
	for field, v := range overrides {
		if v != "" {
			*field = v
		}
	}

	target, err := cfg.ResolveTarget()
	if err != nil {
		return err
	}
	l := newLogger(cfg.Log, stderr)

	var src core.Source
	db, err := src.Configure(target, cfg.Options(l))
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			l.Warn("close: %v", err)
		}
	}()

	mws := []core.Middleware{middleware.NewTracing()}
	if cfg.Log.SlowThreshold > 0 {
		slow := middleware.NewSlowLog(cfg.Log.SlowThreshold, cfg.Log.SlowLogPath)
		if cfg.Log.SlowLogPath == "" {
			slow.SetOutput(stderr)
		}
		mws = append(mws, slow)
	}
	if err := db.Use(mws...); err != nil {
		return err
	}

	ctx := core.WithRequestID(context.Background(), uuid.NewString())
	enc := json.NewEncoder(stdout)

	switch cmd {
	case "query":
		res, err := db.Select(ctx, sql)
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
		l.Info("%d row(s) in %v", len(res.Rows), res.Duration)
	case "exec":
		n, err := db.Exec(ctx, sql)
		if err != nil {
			return err
		}
		return enc.Encode(map[string]int64{"rows_affected": n})
	case "ping":
		if err := db.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")
	case "stats":
		if err := db.Ping(ctx); err != nil {
			return err
		}
		return enc.Encode(db.Stats())
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
	return nil
}

// newLogger writes JSON through zap, or text through the std logger.
func newLogger(cfg config.LogConfig, w io.Writer) logger.Logger {
	level := logger.ParseLevel(cfg.Level)
	if logger.LogFormat(cfg.Format) == logger.LogFormatJSON {
		return logger.NewZapProduction(w, level)
	}
	l := logger.NewStdLogger()
	l.SetOutput(w)
	l.SetLevel(level)
	return l
}
