// Package crawler defines the domain types and ports shared by the polite
// article crawler: crawl jobs, extracted content, sentiment records, and the
// storage, fetch, and analysis interfaces the orchestrator depends on.
package crawler
