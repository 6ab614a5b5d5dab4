// Package di contains dependency injection tokens for the limits context.
package di

const (
	Validator = "limits.Validator"
)
