// Package config defines configuration structures for the pfetch CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (PFETCH_ prefix)
//   - YAML configuration file
//
// Later sources override earlier ones: defaults, then file, then
// environment, then flags.
//
// # Structure
//
//	type Config struct {
//	    URL              string
//	    Output           string
//	    Workers          int
//	    ChunkSize        int64
//	    Progress         bool
//	    Preallocate      bool
//	    CheckpointBucket string
//	    LogLevel         string
//	    HTTP             HTTPConfig
//	}
//
//	type HTTPConfig struct {
//	    Timeout             time.Duration
//	    MaxIdleConnsPerHost int
//	}
package config
