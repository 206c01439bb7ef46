// Package config loads runtime configuration for the idkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c/-config or the CONFIG variable.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the server, e.g. http://localhost:3000
//	-t int      request timeout (seconds)
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_url": "http://localhost:3000",
//	  "request_timeout": "10s",
//	  "online_check_interval": "5s"
//	}
package config
