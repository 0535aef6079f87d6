// SPDX-FileCopyrightText: 2020 Alvar Penning
// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

// dtnclient talks to a dtnd's UNIX agent, or its REST agent, from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dtn7/dtnclient-go/internal/config"
)

// printUsage of dtnclient.
func printUsage(w io.Writer, global *pflag.FlagSet) {
	_, _ = fmt.Fprintf(w, "Usage of %s [flags] register|send|receive|list|fetch|rest:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(w, "%s register EID [-u]\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Registers (or with -u unregisters) EID and lists this session's registrations.\n\n")

	_, _ = fmt.Fprintf(w, "%s send -s SRC DST [-p file] [-l lifetime]\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Sends stdin or the given file from SRC to DST. SRC is registered first.\n\n")

	_, _ = fmt.Fprintf(w, "%s receive EID [-n count] [-t timeout] [-o dir] [--archive]\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Registers EID and writes received payloads to stdout or into a directory.\n\n")

	_, _ = fmt.Fprintf(w, "%s list MAILBOX [--new]\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Prints the IDs of all Bundles the daemon stores for MAILBOX.\n\n")

	_, _ = fmt.Fprintf(w, "%s fetch MAILBOX [ID] [--remove] [--new] [-o dir]\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Fetches one or all stored Bundles of MAILBOX.\n\n")

	_, _ = fmt.Fprintf(w, "%s rest register|unregister|send|fetch ...\n", os.Args[0])
	_, _ = fmt.Fprintf(w, "  Talks to dtnd's REST agent instead of the UNIX socket.\n\n")

	_, _ = fmt.Fprintf(w, "Global flags:\n%s", global.FlagUsages())
}

// globals are the flags in front of a subcommand.
type globals struct {
	socket  string
	conf    string
	metrics string
	verbose bool
}

func newGlobalFlags(g *globals) *pflag.FlagSet {
	fs := pflag.NewFlagSet("dtnclient", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&g.socket, "socket", "s", "", "path of dtnd's agent socket (default from config or "+config.SocketEnv+")")
	fs.StringVarP(&g.conf, "config", "c", "", "configuration file, TOML or YAML")
	fs.StringVar(&g.metrics, "metrics", "", "serve Prometheus metrics on this address, e.g. :9100")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logging")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// run the command line and return the process' exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var g globals
	fs := newGlobalFlags(&g)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stdout, fs)
			return exitOK
		}
		_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
		printUsage(stderr, fs)
		return exitUsage
	}
	if help, _ := fs.GetBool("help"); help {
		printUsage(stdout, fs)
		return exitOK
	}
	if fs.NArg() == 0 {
		printUsage(stderr, fs)
		return exitUsage
	}

	conf, err := config.Load(g.conf)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}
	if g.socket != "" {
		conf.Agent.Socket = g.socket
	}
	if g.metrics != "" {
		conf.Metrics.Listen = g.metrics
	}

	conf.Logging.Apply(log.StandardLogger())
	if g.verbose {
		log.SetLevel(log.DebugLevel)
	}

	c := &cli{
		conf:   conf,
		logger: log.StandardLogger(),
		stdin:  stdin,
		stdout: stdout,
	}

	if conf.Metrics.Listen != "" {
		stop, err := c.serveMetrics(conf.Metrics.Listen)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
			return exitOther
		}
		defer stop()
	}

	err = c.dispatch(ctx, fs.Arg(0), fs.Args()[1:])

	var usage *usageError
	if errors.As(err, &usage) {
		_, _ = fmt.Fprintf(stderr, "error: %v\n\n", err)
		printUsage(stderr, fs)
	} else if err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}
