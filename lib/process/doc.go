// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. main() calls
// run(), which returns an error; [Exit] turns that error into the
// process exit code, taking the code from an [ExitError] when one is
// in the chain.
package process
