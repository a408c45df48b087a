// Package config provides configuration management for deck-sync.
//
// It utilizes Viper for loading configuration from environment variables and an
// optional .env file. Defaults come from the `default` struct tags of each section.
//
// # Configuration Structure
//
//   - Server: control API listen address and API key
//   - Database: local store driver (sqlite or mysql) and connection
//   - Storage: MinIO credentials and the attachment bucket
//   - Log: logging level and format
//   - Pool: worker count and queue size for background sessions
//   - Sync: remote request timeout, user agent, capabilities cache TTL
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Pool.Workers)
package config
