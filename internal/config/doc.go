// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// After the file is parsed, MARKET_* variables override individual fields
// (for example MARKET_DATABASE_PASSWORD or MARKET_MARKET_FEE_BASIS_POINTS).
package config
