// Package store defines interfaces for persisting scrape run history.
// Implementations live in other packages; this package must not import
// concrete storage clients.
package store
