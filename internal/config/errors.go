// SPDX-License-Identifier: MIT

package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrInvalidConfig wraps every validation failure of AppConfig.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidSource wraps validation failures of source index entries.
	ErrInvalidSource = errors.New("invalid source")
)
