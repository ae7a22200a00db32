// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package issuer

import "time"

// dayPoll bounds how long the issuer goes without re-checking the day
// flag while waiting for messages.
const dayPoll = 200 * time.Millisecond
