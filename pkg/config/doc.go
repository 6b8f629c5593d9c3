// Package config loads typed configuration structs from environment
// variables, with optional .env file support for local development.
//
// Each component of the service declares its own Config struct with `env`
// tags and loads it independently:
//
//	var mongoCfg mongo.Config
//	config.MustLoad(&mongoCfg)
package config
