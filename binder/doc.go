// Package binder populates request structs from the JSON body, route
// parameters and the query string. Each binder reads its own struct tag:
// `json`, `path` or `query`.
package binder
