// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/client"
)

// register EID [-u]
func (c *cli) register(ctx context.Context, args []string) error {
	fs := flagSet("register")
	unregister := fs.BoolP("unregister", "u", false, "unregister the endpoint again")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	eid, err := parseEndpoint("endpoint", fs.Arg(0))
	if err != nil {
		return err
	}

	cl, err := c.connect(ctx, bpv7.EndpointID{}, false)
	if err != nil {
		return err
	}
	defer c.closeClient(cl)

	if err := cl.Register(ctx, eid); err != nil {
		return err
	}
	if *unregister {
		if err := cl.Deregister(ctx, eid); err != nil {
			return err
		}
	}

	for _, reg := range cl.Registrations() {
		_, _ = fmt.Fprintf(c.stdout, "%v\t%s\n", reg.EndpointID, reg.Registered.Format("2006-01-02T15:04:05"))
	}
	return nil
}

// send -s SRC DST [-p file] [-l lifetime]
func (c *cli) send(ctx context.Context, args []string) error {
	fs := flagSet("send")
	src := fs.StringP("source", "s", c.conf.Agent.Endpoint, "source endpoint, registered before sending")
	file := fs.StringP("payload", "p", "-", "payload file, - for stdin")
	lifetime := fs.DurationP("lifetime", "l", 0, "Bundle lifetime (default from config)")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}
	if *src == "" {
		return usagef("send: missing source endpoint")
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

	sub, err := c.conf.Submission(source, destination, payload)
	if err != nil {
		return usagef("bundle configuration: %v", err)
	}
	if *lifetime > 0 {
		sub.Lifetime = *lifetime
	}

	cl, err := c.connect(ctx, source, false)
	if err != nil {
		return err
	}
	defer c.closeClient(cl)

	res, err := cl.SendBundle(ctx, sub)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(c.stdout, res.BundleID)
	return nil
}

// receive EID [-n count] [-t timeout] [-o dir] [--archive]
func (c *cli) receive(ctx context.Context, args []string) error {
	fs := flagSet("receive")
	count := fs.IntP("count", "n", 1, "number of Bundles to receive, 0 for no limit")
	timeout := fs.DurationP("timeout", "t", c.conf.Timeouts.Receive.Duration, "timeout per Bundle, 0 to wait forever")
	dir := fs.StringP("output", "o", "", "directory for received payloads instead of stdout")
	archive := fs.Bool("archive", false, "also store received Bundles in the configured archive")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}
	if *count < 0 {
		return usagef("receive: negative count %d", *count)
	}

	eid, err := parseEndpoint("endpoint", fs.Arg(0))
	if err != nil {
		return err
	}

	cl, err := c.connect(ctx, eid, *archive)
	if err != nil {
		return err
	}
	defer c.closeClient(cl)

	for i := 0; *count == 0 || i < *count; i++ {
		d, err := cl.Receive(ctx, eid, *timeout)
		if err != nil {
			return err
		}

		c.logger.WithFields(log.Fields{
			"bundle": d.BundleID,
			"source": d.SourceID,
			"size":   len(d.Payload),
		}).Debug("Received Bundle")

		if err := c.writePayload(*dir, bundleFileName(d.BundleID), d.Payload); err != nil {
			return fmt.Errorf("writing payload of %s failed: %w", d.BundleID, err)
		}
	}

	if store := cl.Archive(); store != nil {
		if n := store.DeleteExpired(); n > 0 {
			c.logger.WithField("deleted", n).Info("Deleted expired archive entries")
		}
	}
	return nil
}

// list MAILBOX [--new]
func (c *cli) list(ctx context.Context, args []string) error {
	fs := flagSet("list")
	newOnly := fs.Bool("new", false, "only list Bundles not fetched before")
	if err := parse(fs, args, 1, 1); err != nil {
		return err
	}

	mailbox, err := parseEndpoint("mailbox", fs.Arg(0))
	if err != nil {
		return err
	}

	cl, err := c.connect(ctx, bpv7.EndpointID{}, false)
	if err != nil {
		return err
	}
	defer c.closeClient(cl)

	ids, err := cl.List(ctx, mailbox, *newOnly)
	if err != nil {
		return err
	}
	for _, id := range ids {
		_, _ = fmt.Fprintln(c.stdout, id)
	}
	return nil
}

// fetch MAILBOX [ID] [--remove] [--new] [-o dir]
func (c *cli) fetch(ctx context.Context, args []string) error {
	fs := flagSet("fetch")
	remove := fs.Bool("remove", false, "remove fetched Bundles from the mailbox")
	newOnly := fs.Bool("new", false, "only fetch Bundles not fetched before")
	dir := fs.StringP("output", "o", "", "directory for fetched payloads instead of stdout")
	if err := parse(fs, args, 1, 2); err != nil {
		return err
	}

	mailbox, err := parseEndpoint("mailbox", fs.Arg(0))
	if err != nil {
		return err
	}

	cl, err := c.connect(ctx, bpv7.EndpointID{}, false)
	if err != nil {
		return err
	}
	defer c.closeClient(cl)

	var bundles []client.BundleContent
	if fs.NArg() == 2 {
		bc, err := cl.Fetch(ctx, mailbox, fs.Arg(1), *remove)
		if err != nil {
			return err
		}
		bundles = append(bundles, bc)
	} else if bundles, err = cl.FetchAll(ctx, mailbox, *newOnly, *remove); err != nil {
		return err
	}

	for _, bc := range bundles {
		if err := c.writePayload(*dir, bundleFileName(bc.BundleID), bc.Payload); err != nil {
			return fmt.Errorf("writing payload of %s failed: %w", bc.BundleID, err)
		}
	}
	return nil
}
