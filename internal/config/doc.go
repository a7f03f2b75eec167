// Package config loads, validates, and hot-reloads the cogniflowd YAML
// configuration. Invalid parameter combinations (step exceeding the window,
// inverted interval bounds, out-of-range smoothing coefficients) are rejected
// at load time, before any session can start; nothing downstream re-checks
// them.
package config
