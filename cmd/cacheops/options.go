package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jonwraymond/cacheops/config"
)

// Options holds the parsed command line.
type Options struct {
	Flush      bool
	Stats      bool
	ResetStats bool
	Poll       bool
	Interval   float64
	Check      bool
	ConfigPath string
	ConfigSet  bool
	Servers    string
	Debug      bool
	Listen     string
	Args       []string
}

func parseArgs(args []string) (Options, error) {
	opts := Options{
		ConfigPath: config.DefaultPath,
		Interval:   1.0,
	}

	fs := flag.NewFlagSet("cacheops", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.BoolVar(&opts.Flush, "flush", false, "Flush all cache entries and reset stats")
	fs.BoolVar(&opts.Stats, "stats", false, "List raw per-server stats as YAML")
	fs.BoolVar(&opts.ResetStats, "reset-stats", false, "Reset statistics")
	fs.BoolVar(&opts.Poll, "poll", false, "Continually poll, showing gets/sets per second")
	fs.Float64Var(&opts.Interval, "interval", opts.Interval, "Interval in seconds used when polling")
	fs.BoolVar(&opts.Check, "check", false, "Probe each server and report which respond")
	fs.StringVar(&opts.ConfigPath, "config", opts.ConfigPath, "Path to configuration file")
	fs.StringVar(&opts.Servers, "servers", "", "Comma-separated server list, overriding configuration")
	fs.BoolVar(&opts.Debug, "debug", false, "Store human-readable keys")
	fs.StringVar(&opts.Listen, "listen", "", "With --poll: serve /metrics and health endpoints on this address")

	if err := fs.Parse(args); err != nil {
		usage := usage(fs)
		if errors.Is(err, flag.ErrHelp) {
			return Options{}, fmt.Errorf("%w\n\n%s", err, usage)
		}
		return Options{}, fmt.Errorf("%w\n\n%s", err, usage)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.ConfigSet = true
		}
	})

	if opts.Interval <= 0 {
		return Options{}, errors.New("cacheops: --interval must be positive")
	}
	if opts.Listen != "" && !opts.Poll {
		return Options{}, errors.New("cacheops: --listen requires --poll")
	}

	opts.Args = fs.Args()
	return opts, nil
}

func usage(fs *flag.FlagSet) string {
	if fs == nil {
		return ""
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Usage of %s:\n", fs.Name())
	out := fs.Output()
	fs.SetOutput(&buf)
	fs.PrintDefaults()
	fs.SetOutput(out)
	return buf.String()
}
