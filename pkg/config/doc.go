// Package config loads typed configuration structs from the environment.
//
// It layers godotenv (optional .env files for local development) under
// caarlos0/env struct parsing. Each configuration type is parsed once per
// process and cached, so independent components can Load the same struct
// without re-reading the environment or disagreeing about its contents.
package config
