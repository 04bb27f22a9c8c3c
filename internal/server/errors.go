// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package server

import "errors"

// errNoHTTPHandler is returned by NewServer when the handler set carries no
// HTTP router; everclaw has no other transport to serve.
var errNoHTTPHandler = errors.New("server: no http handler to serve")
