// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dtn7/dtnclient-go/internal/config"
	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/client"
)

// cli carries the state shared by all subcommands.
type cli struct {
	conf   config.Config
	logger *log.Logger

	// registry is only set while metrics are served.
	registry *prometheus.Registry

	stdin  io.Reader
	stdout io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return c.register(ctx, args)
	case "send":
		return c.send(ctx, args)
	case "receive":
		return c.receive(ctx, args)
	case "list":
		return c.list(ctx, args)
	case "fetch":
		return c.fetch(ctx, args)
	case "rest":
		return c.rest(ctx, args)
	default:
		return usagef("unknown command %q", cmd)
	}
}

// flagSet for a subcommand, reporting parse errors as usage errors.
func flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *pflag.FlagSet, args []string, minArgs, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%s: %v", fs.Name(), err)
	}
	if n := fs.NArg(); n < minArgs || n > maxArgs {
		return usagef("%s: expected between %d and %d arguments, got %d", fs.Name(), minArgs, maxArgs, n)
	}
	return nil
}

func parseEndpoint(what, uri string) (bpv7.EndpointID, error) {
	eid, err := bpv7.NewEndpointID(uri)
	if err != nil {
		return eid, usagef("%s: %v", what, err)
	}
	return eid, nil
}

// connect to the configured agent socket, registering initial if set.
func (c *cli) connect(ctx context.Context, initial bpv7.EndpointID, archive bool) (*client.Client, error) {
	var reg prometheus.Registerer
	if c.registry != nil {
		reg = c.registry
	}

	opts, err := c.conf.ClientOptions(c.logger, reg)
	if err != nil {
		return nil, usagef("agent endpoint: %v", err)
	}
	if !initial.IsZero() {
		opts.InitialEndpoint = initial
	}
	if !archive {
		opts.ArchiveDir = ""
	} else if opts.ArchiveDir == "" {
		return nil, usagef("--archive requires a configured archive directory")
	}

	c.logger.WithField("socket", c.conf.Agent.Socket).Debug("Connecting to agent")
	return client.Connect(ctx, c.conf.Agent.Socket, opts)
}

// closeClient and log a failure, which cannot change the command's outcome.
func (c *cli) closeClient(cl *client.Client) {
	if err := cl.Close(); err != nil {
		c.logger.WithError(err).Warn("Closing client errored")
	}
}

// serveMetrics on addr until the returned function is called.
func (c *cli) serveMetrics(addr string) (stop func(), err error) {
	c.registry = prometheus.NewRegistry()

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics failed: %w", err)
	}

	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.logger.WithError(err).Warn("Serving metrics errored")
		}
	}()

	c.logger.WithField("address", ln.Addr()).Info("Serving metrics")
	return func() { _ = srv.Close() }, nil
}

// readPayload from a file, or from stdin for "" and "-".
func (c *cli) readPayload(file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(c.stdin)
	}
	return os.ReadFile(file)
}

// bundleFileName is a file system safe name for a Bundle ID.
func bundleFileName(bundleID string) string {
	return hex.EncodeToString([]byte(bundleID))
}

// writePayload to stdout or, if dir is set, into the named file.
func (c *cli) writePayload(dir, name string, payload []byte) error {
	if dir == "" {
		_, err := c.stdout.Write(payload)
		return err
	}

	filePath := filepath.Join(dir, name)
	if err := os.WriteFile(filePath, payload, 0o644); err != nil {
		return err
	}

	c.logger.WithField("file", filePath).Info("Saved received Bundle")
	return nil
}
