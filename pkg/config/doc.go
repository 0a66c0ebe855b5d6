// Package config loads and holds the runtime configuration.
//
// Values come from [Default], then an optional YAML file, then environment
// variables (WARDEN_* plus SENTRY_DSN and SENTRY_ENVIRONMENT). Dotenv files
// passed with [WithEnvFiles] fill in variables the process environment does
// not set. Durations use Go syntax ("30m", "24h").
//
//	store, err := config.Open("warden.yaml", config.WithEnvFiles(".env"))
//	if err != nil {
//		return err
//	}
//	go store.Watch(ctx) // hot reload
//
//	svc := csrf.NewService(store) // reads the secret on every call
//
// A [Store] is safe for concurrent use. Writers (Update, Reload) replace
// the whole value under a lock, so readers see either the old or the new
// configuration, never a mix.
package config
