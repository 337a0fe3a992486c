// Package main hosts the Form 4 crawler entrypoint.
//
// Architecture overview:
//   - Orchestrator: internal/crawl walks calendar days from the start date. A day is only processed once it has
//     fully elapsed in the exchange timezone; unattended runs wait and retry, attended runs stop when caught up.
//   - Fetch pipeline: the daily master index is fetched with the Colly-based fetcher and every Form 4 document
//     it lists is fetched and parsed in batches of at most ten, with a fixed pause after each batch to stay under
//     the archive's request ceiling. Failed documents are appended to the failure log and never abort the day.
//   - Checkpoints: each fetched day is written as JSON (local disk or GCS) before ingestion so a restart resumes
//     from the checkpoint instead of refetching.
//   - Ingestion: transactions are written to Postgres (or memory when db.dsn is empty) through cached
//     find-or-create resolvers for issuers, owners and forms; re-ingesting a day never duplicates rows.
//   - Fanout & observability: a compact Pub/Sub notification is published per finished day when configured;
//     progress events flow through a non-blocking hub into zap logs, Prometheus metrics and the crawl_days table.
//     The optional HTTP server exposes /healthz, /readyz, /metrics, /v1/status and /v1/days.
//
// Quick checklist:
//   - Configure env vars: FORM4_CRAWLER_START_DATE, FORM4_CRAWLER_USER_AGENT (EDGAR requires a contact
//     address), FORM4_DB_DSN, FORM4_CHECKPOINT_BACKEND/FORM4_CHECKPOINT_GCS_BUCKET, FORM4_PUBSUB_PROJECT_ID and
//     FORM4_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/form4crawler -config config.yaml -start 2023-01-03.
//   - Backfill a range: -start 2023-01-03 -stop 2023-02-01 (the stop day is not crawled).
package main
