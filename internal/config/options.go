// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtnclient-go/pkg/bpv7"
	"github.com/dtn7/dtnclient-go/pkg/client"
)

// ClientOptions for client.Connect. The Registerer might be nil.
func (conf Config) ClientOptions(logger log.FieldLogger, reg prometheus.Registerer) (opts client.Options, err error) {
	opts = client.Options{
		Logger:           logger,
		Registerer:       reg,
		DialTimeout:      conf.Timeouts.Connect.Duration,
		WaitForSocket:    conf.Agent.WaitForSocket.Duration,
		RequestTimeout:   conf.Timeouts.Request.Duration,
		MaxFrameSize:     conf.Agent.MaxFrameSize,
		DefaultLifetime:  conf.Bundle.Lifetime.Duration,
		ArchiveDir:       conf.Archive.Dir,
		ArchiveRetention: conf.Archive.Retention.Duration,
	}

	if conf.Agent.Endpoint != "" {
		opts.InitialEndpoint, err = bpv7.NewEndpointID(conf.Agent.Endpoint)
	}
	return
}

// Submission returns a Submission with the configured Bundle defaults.
func (conf Config) Submission(source, destination bpv7.EndpointID, payload []byte) (sub client.Submission, err error) {
	sub = client.Submission{
		Source:      source,
		Destination: destination,
		Payload:     payload,
		Lifetime:    conf.Bundle.Lifetime.Duration,
		HopLimit:    uint8(conf.Bundle.HopLimit),
	}

	if sub.CRC, err = bpv7.ParseCRCType(conf.Bundle.CRC); err != nil {
		return
	}
	sub.ControlFlags, err = bpv7.ParseBundleControlFlags(conf.Bundle.Flags)
	return
}
