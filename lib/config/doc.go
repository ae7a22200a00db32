// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the simulation parameters.
//
// Two file formats are accepted. The classic format is one KEY=VALUE
// assignment per line with integer values (NOF_WORKERS=8,
// DAY_SIMULATION_TIME=5, ...); comments start with '#' and unknown
// keys are ignored. YAML files (.yaml, .yml) use the snake_case field
// names of Config and can additionally replace the service catalog
// and pin operator and counter services.
//
// The file is named by the POSTOFFICE_CONFIG environment variable or
// the --config flag. A missing file is not an error: the defaults of
// the reference office apply.
package config
