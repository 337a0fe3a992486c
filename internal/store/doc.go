// Package store defines the repository interfaces used to persist crawl-day
// outcomes. Implementations live in storage packages; this package must not
// import database drivers or concrete clients.
package store
