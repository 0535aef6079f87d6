// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
)

// Validate returns all problems of this configuration at once.
func (conf Config) Validate() (errs error) {
	if conf.Agent.Socket == "" {
		errs = multierror.Append(errs, fmt.Errorf("agent.socket is empty"))
	}
	if conf.Agent.Endpoint != "" {
		if _, err := bpv7.NewEndpointID(conf.Agent.Endpoint); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("agent.endpoint: %w", err))
		}
	}

	for name, d := range map[string]Duration{
		"agent.wait-for-socket": conf.Agent.WaitForSocket,
		"timeouts.connect":      conf.Timeouts.Connect,
		"timeouts.request":      conf.Timeouts.Request,
		"timeouts.receive":      conf.Timeouts.Receive,
		"rest.timeout":          conf.Rest.Timeout,
		"archive.retention":     conf.Archive.Retention,
	} {
		if d.Duration < 0 {
			errs = multierror.Append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if conf.Bundle.Lifetime.Duration <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("bundle.lifetime must be positive"))
	}
	if conf.Bundle.HopLimit > 255 {
		errs = multierror.Append(errs, fmt.Errorf("bundle.hop-limit %d exceeds 255", conf.Bundle.HopLimit))
	}
	if _, err := bpv7.ParseCRCType(conf.Bundle.CRC); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("bundle.crc: %w", err))
	}
	if flags, err := bpv7.ParseBundleControlFlags(conf.Bundle.Flags); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("bundle.flags: %w", err))
	} else if err := flags.CheckValid(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("bundle.flags: %w", err))
	}

	if _, err := log.ParseLevel(conf.Logging.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch conf.Logging.Format {
	case "", "text", "json":
	default:
		errs = multierror.Append(errs, fmt.Errorf("logging.format %q is neither text nor json", conf.Logging.Format))
	}

	if conf.Rest.URL != "" {
		if u, err := url.Parse(conf.Rest.URL); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("rest.url: %w", err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errs = multierror.Append(errs, fmt.Errorf("rest.url needs a http or https scheme"))
		}
	}

	return
}
