// Package di contains dependency injection tokens for the risk context.
package di

const (
	Controller = "risk.Controller"
)
