// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	"github.com/dtn7/dtnclient-go/pkg/rest"
)

// rest register|unregister|send|fetch
func (c *cli) rest(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("rest: missing command")
	}

	rc := rest.NewClient(c.conf.Rest.URL, c.conf.Rest.Timeout.Duration, c.logger)

	switch args[0] {
	case "register":
		return c.restRegister(ctx, rc, args[1:])
	case "unregister":
		return c.restUnregister(ctx, rc, args[1:])
	case "send":
		return c.restSend(ctx, rc, args[1:])
	case "fetch":
		return c.restFetch(ctx, rc, args[1:])
	default:
		return usagef("rest: unknown command %q", args[0])
	}
}

// rest register EID, prints the UUID for all following requests.
func (c *cli) restRegister(ctx context.Context, rc *rest.Client, args []string) error {
	fs := flagSet("rest register")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	eid, err := parseEndpoint("endpoint", fs.Arg(0))
	if err != nil {
		return err
	}

	reg, err := rc.Register(ctx, eid)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(c.stdout, reg.UUID)
	return nil
}

// rest unregister UUID
func (c *cli) restUnregister(ctx context.Context, rc *rest.Client, args []string) error {
	fs := flagSet("rest unregister")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}
	return rc.Unregister(ctx, fs.Arg(0))
}

// rest send -u UUID -s SRC DST [-p file] [-l lifetime]
func (c *cli) restSend(ctx context.Context, rc *rest.Client, args []string) error {
	fs := flagSet("rest send")
	uuid := fs.StringP("uuid", "u", "", "UUID of a REST registration")
	src := fs.StringP("source", "s", c.conf.Agent.Endpoint, "endpoint of the registration")
	file := fs.StringP("payload", "p", "-", "payload file, - for stdin")
	lifetime := fs.DurationP("lifetime", "l", c.conf.Bundle.Lifetime.Duration, "Bundle lifetime")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}
	if *uuid == "" || *src == "" {
		return usagef("rest send: both --uuid and --source are required")
	}

	source, err := parseEndpoint("source", *src)
	if err != nil {
		return err
	}
	destination, err := parseEndpoint("destination", fs.Arg(0))
	if err != nil {
		return err
	}

	payload, err := c.readPayload(*file)
	if err != nil {
		return fmt.Errorf("reading payload failed: %w", err)
	}

	reg := rest.Registration{EndpointID: source, UUID: *uuid}
	return rc.Send(ctx, reg, destination, payload, *lifetime)
}

// rest fetch UUID [-o dir]
func (c *cli) restFetch(ctx context.Context, rc *rest.Client, args []string) error {
	fs := flagSet("rest fetch")
	dir := fs.StringP("output", "o", "", "directory for fetched payloads instead of stdout")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	bundles, err := rc.Fetch(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	for _, b := range bundles {
		payload, err := b.Payload()
		if err != nil {
			c.logger.WithError(err).Warn("Skipping Bundle without payload")
			continue
		}

		name := b.FileName()
		if err := c.writePayload(*dir, name, payload); err != nil {
			return fmt.Errorf("writing payload of %s failed: %w", name, err)
		}
	}
	return nil
}
