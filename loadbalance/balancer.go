// Package loadbalance chooses which authority instance receives a checkpoint request
// when more than one controller is registered.
//
//   - RoundRobin:      equal-capacity controllers
//   - WeightedRandom:  controllers of different capacity, by registered weight
package loadbalance

import (
	"errors"
	"fmt"

	"checkpoint-rpc/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is called before every round trip and must be goroutine-safe.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name as used in configuration.
	Name() string
}

// New returns the balancer configured by name ("round-robin" or "weighted-random").
func New(name string) (Balancer, error) {
	switch name {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	}
	return nil, fmt.Errorf("unknown balancer %q (want round-robin|weighted-random)", name)
}
