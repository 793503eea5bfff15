// Package nebulabackup backs up cursor-paginated REST collections to cloud
// storage.
//
// A run creates one folder named after the current date under a configured
// root, then handles every configured source in order:
//
//	fetch      GET {url}?cursor=0,100,200... until an empty page
//	serialize  sorted union of field names as header, one row per record
//	transfer   upload into the run folder, delete the local file on success
//
// A 429 is waited out using its Retry-After header and retried on the same
// cursor. Any other failure ends that source's pagination and whatever was
// collected is still written and uploaded. One failing source never stops
// the others; only a failure to create the run folder aborts the run.
//
// # Layout
//
//	cmd/nebula-backup        cobra CLI: run, schedule, sources, version
//	internal/fetch           pagination state machine
//	internal/tabular         delimited file writer
//	internal/transfer        upload then delete
//	internal/backup          per-run orchestration and reports
//	internal/scheduler       cron triggers, no overlapping runs
//	internal/server          /metrics, /healthz and /status
//	pkg/destinations/...     drive, gcs, s3 and local storage backends
//	pkg/record               heterogeneous records and schema union
//	pkg/config               YAML/TOML/env configuration
//	pkg/clients              HTTP client with bearer auth and rate limiting
//	pkg/compression          optional artifact compression
//	pkg/logger, pkg/errors, pkg/metrics, pkg/observability
//
// # Quick start
//
//	export BUBBLE_API_TOKEN=...
//	export GOOGLE_DRIVE_FOLDER_ID=...
//	export GOOGLE_CREDENTIALS_PATH=service-account.json
//	export BACKUP_SOURCES=https://app.example.com/api/1.1/obj/user=user.tsv
//	nebula-backup run
//
// Or with a job file and a cron schedule:
//
//	nebula-backup schedule --config backup.yaml
package nebulabackup
