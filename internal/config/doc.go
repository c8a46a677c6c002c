// Package config defines the routing engine configuration model and
// its YAML loader.
//
// Configuration is loaded from a YAML file with ${VAR} and
// ${VAR:-default} environment variable substitution applied before
// parsing:
//
//	cfg, err := config.LoadConfig("configs/router.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// A Watcher can observe the file for changes and deliver validated
// configurations through a callback, debounced to absorb editor
// write bursts.
package config
