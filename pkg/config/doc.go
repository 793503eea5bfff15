// Package config provides configuration management for nebula-backup.
//
// # Sources of configuration
//
// A job is described by one Config. It can come from:
//
//   - a YAML or TOML file (LoadFile), with ${VAR} and ${VAR:-default} substitution
//   - the environment alone (FromEnv), using the variables of existing
//     deployments: BUBBLE_API_TOKEN, GOOGLE_DRIVE_FOLDER_ID,
//     GOOGLE_CREDENTIALS_PATH and BACKUP_SOURCES
//
// Dotenv files (bubble.env, google.env, .env) are loaded first by LoadEnvFiles
// so both paths can reference their variables.
//
// # Example
//
//	# backup.yaml
//	api:
//	  token: ${BUBBLE_API_TOKEN}
//	sources:
//	  - url: https://app.example.com/api/1.1/obj/user
//	    output: user.tsv
//	storage:
//	  type: drive
//	  root_folder_id: ${GOOGLE_DRIVE_FOLDER_ID}
//	  credentials_file: ${GOOGLE_CREDENTIALS_PATH}
//	schedule:
//	  cron: "0 3 * * *"
//
// Defaults are applied by ApplyDefaults (page size 100, 1s politeness delay,
// 5s default Retry-After, tab delimiter, drive storage) and Validate checks
// the result with go-playground/validator.
package config
