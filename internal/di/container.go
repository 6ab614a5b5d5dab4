// Package di provides a small named-service container used as the
// application's composition root. Modules register services under a
// string token; downstream packages fetch them back by token and cast.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry is the read side of the container, handed to modules and
// business packages so they can resolve dependencies without importing the
// concrete container type.
type ServiceRegistry interface {
	Get(name string) (interface{}, bool)
	MustGet(name string) interface{}
}

// Container is the read-write composition root.
type Container interface {
	ServiceRegistry
	Register(name string, svc interface{})
}

type container struct {
	mu       sync.RWMutex
	services map[string]interface{}
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{
		services: make(map[string]interface{}),
	}
}

func (c *container) Register(name string, svc interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = svc
}

func (c *container) Get(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	svc, ok := c.services[name]
	return svc, ok
}

func (c *container) MustGet(name string) interface{} {
	svc, ok := c.Get(name)
	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}
	return svc
}

// Resolve is a typed helper for token packages: Resolve[*Detector](reg, di.Detector).
func Resolve[T any](reg ServiceRegistry, name string) T {
	svc := reg.MustGet(name)
	typed, ok := svc.(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type %T", name, svc))
	}
	return typed
}
