// Package di contains dependency injection tokens for the dispatch context.
package di

const (
	Queue      = "dispatch.Queue"
	WorkerPool = "dispatch.WorkerPool"
)
