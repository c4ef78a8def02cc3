// Package main implements the cacheops CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/cacheops/cache"
	"github.com/jonwraymond/cacheops/config"
	"github.com/jonwraymond/cacheops/stats"
	"github.com/jonwraymond/cacheops/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stdout, err.Error())
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	if !cfg.Enabled() {
		_, _ = fmt.Fprintln(stderr, "caching is not enabled.")
		return 1
	}

	client := cache.New(cfg.CacheConfig())
	defer client.Close()

	switch {
	case opts.Poll:
		return runPoll(ctx, client, cfg, opts, stdout, stderr)
	case opts.Flush:
		return runFlush(ctx, client, stdout, stderr)
	case opts.ResetStats:
		return runResetStats(ctx, client, stdout, stderr)
	case opts.Check:
		return runCheck(ctx, client, stdout, stderr)
	case opts.Stats:
		return runStats(ctx, client, stdout, stderr)
	default:
		return runSummary(ctx, client, stdout, stderr)
	}
}

// loadConfig resolves configuration in ascending precedence: file,
// environment, command-line flags. The default config file is optional;
// one named with --config is not.
func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		if opts.ConfigSet || !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
		cfg, err = config.FromEnv()
		if err != nil {
			return config.Config{}, err
		}
	}

	if opts.Servers != "" {
		cfg.Servers = config.SplitServers(opts.Servers)
	}
	if opts.Debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func runFlush(ctx context.Context, client *cache.Client, stdout, stderr io.Writer) int {
	if err := client.Flush(ctx, true); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "cache servers are flushed.")
	return 0
}

func runResetStats(ctx context.Context, client *cache.Client, stdout, stderr io.Writer) int {
	if err := client.ResetStats(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "cache servers are stat reset.")
	return 0
}

func runCheck(ctx context.Context, client *cache.Client, stdout, stderr io.Writer) int {
	responding, err := client.TestServers(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	up := 0
	for _, server := range client.Servers() {
		status := "not responding"
		if responding[server] {
			status = "responding"
			up++
		}
		_, _ = fmt.Fprintf(stdout, "%-64s %s\n", server, status)
	}
	if up == 0 {
		_, _ = fmt.Fprintln(stderr, "cache servers are not responding.")
		return 1
	}
	return 0
}

func runStats(ctx context.Context, client *cache.Client, stdout, stderr io.Writer) int {
	raw, err := client.Stats(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if len(raw) == 0 {
		return 0
	}

	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(statsDoc(raw)); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if err := enc.Close(); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

// statsDoc renders per-server counters as a mapping that keeps the
// configured server order. Encoding a Go map would sort the servers.
func statsDoc(raw []store.ServerStats) *yaml.Node {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range raw {
		counters := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range slices.Sorted(maps.Keys(s.Stats)) {
			counters.Content = append(counters.Content, strNode(name), strNode(s.Stats[name]))
		}
		doc.Content = append(doc.Content, strNode(s.Server), counters)
	}
	return doc
}

func strNode(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func runSummary(ctx context.Context, client *cache.Client, stdout, stderr io.Writer) int {
	raw, err := client.Stats(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	if len(raw) == 0 {
		_, _ = fmt.Fprintln(stderr, "cache servers are not responding.")
		return 1
	}

	if err := stats.WriteTable(stdout, stats.Summarize(raw)); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func runPoll(ctx context.Context, client *cache.Client, cfg config.Config, opts Options, stdout, stderr io.Writer) int {
	sink := stats.Sink(func(sample stats.Sample, rates []stats.Rates) {
		stats.WriteRates(stdout, rates)
	})

	if opts.Listen != "" {
		l, err := newListener(client, cfg.CacheConfig())
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		}
		defer l.shutdown()

		ln, err := net.Listen("tcp", opts.Listen)
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		}
		srv := &http.Server{Handler: l.handler, ReadHeaderTimeout: 5 * time.Second}
		go func() { _ = srv.Serve(ln) }()
		defer srv.Close()

		writeRates := sink
		sink = func(sample stats.Sample, rates []stats.Rates) {
			writeRates(sample, rates)
			l.exporter.Record(sample, rates)
		}
	}

	stats.WritePollHeader(stdout)
	poller := &stats.Poller{
		Source:   client,
		Interval: time.Duration(opts.Interval * float64(time.Second)),
		Sink:     sink,
	}
	if err := poller.Run(ctx); err != nil {
		// Interruption is how a poll run normally ends.
		if ctx.Err() != nil {
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}
