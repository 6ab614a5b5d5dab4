// Package di contains dependency injection tokens for the pricecache context.
package di

// DI tokens for the pricecache module.
const (
	Cache = "pricecache.Cache"
)
