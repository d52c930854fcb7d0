// Package registry tells checkpoint clients where the scheduling authority runs.
//
// Authority daemons register one ServiceInstance per advertised address; clients
// Discover the instances of a service name before each round trip.
package registry

import (
	"context"
	"errors"
)

// ErrNoInstances is returned by Discover when a service has no live instance.
var ErrNoInstances = errors.New("registry: no instances available")

type ServiceInstance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight"` // relative share for weighted balancing
	Version string `json:"version"`
}

type Registry interface {
	Register(ctx context.Context, serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	Watch(ctx context.Context, serviceName string) <-chan []ServiceInstance
}
