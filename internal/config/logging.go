// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// Apply this logging configuration to the logger.
func (conf LogConf) Apply(logger *log.Logger) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			logger.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			logger.SetLevel(lvl)
		}
	}

	logger.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		logger.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		logger.WithField("format", conf.Format).Warn("Unknown logging format")
	}
}
