// SPDX-FileCopyrightText: 2024 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import "errors"

// ErrInvalidEndpoint is wrapped by all errors resulting from unparsable or invalid Endpoint IDs.
var ErrInvalidEndpoint = errors.New("invalid endpoint id")
