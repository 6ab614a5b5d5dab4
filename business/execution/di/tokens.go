// Package di contains dependency injection tokens for the execution context.
package di

const (
	Engine = "execution.Engine"
)
