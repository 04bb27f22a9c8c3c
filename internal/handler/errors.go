// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package handler

import "errors"

// errNoHTTPAddress is returned by NewHandlers when SERVER_ADDRESS is
// empty. The vault API is HTTP only, so startup cannot continue.
var errNoHTTPAddress = errors.New("handler: http address is not configured")
