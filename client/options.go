package client

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"checkpoint-rpc/codec"
	"checkpoint-rpc/loadbalance"
)

// Options configures how a Client finds and talks to the checkpoint authority.
type Options struct {
	ServiceName    string        `json:"service-name" mapstructure:"service-name"`
	Controllers    []string      `json:"controllers" mapstructure:"controllers"`
	EtcdEndpoints  []string      `json:"etcd-endpoints" mapstructure:"etcd-endpoints"`
	EtcdPrefix     string        `json:"etcd-prefix" mapstructure:"etcd-prefix"`
	Balancer       string        `json:"balancer" mapstructure:"balancer"`
	Codec          string        `json:"codec" mapstructure:"codec"`
	PoolSize       int           `json:"pool-size" mapstructure:"pool-size"`
	DialTimeout    time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	RequestTimeout time.Duration `json:"request-timeout" mapstructure:"request-timeout"`
	Heartbeat      time.Duration `json:"heartbeat" mapstructure:"heartbeat"`
}

// NewOptions creates a new Options object with default values.
func NewOptions() *Options {
	return &Options{
		ServiceName:    "ckptctld",
		Controllers:    []string{"127.0.0.1:6817"},
		Balancer:       "round-robin",
		Codec:          "binary",
		PoolSize:       2,
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		Heartbeat:      30 * time.Second,
	}
}

// Complete drops blank list entries left over from comma-separated flags or env.
func (o *Options) Complete() error {
	o.Controllers = compact(o.Controllers)
	o.EtcdEndpoints = compact(o.EtcdEndpoints)
	return nil
}

// Validate checks if the options are valid.
func (o *Options) Validate() error {
	var errs []error
	if o.ServiceName == "" {
		errs = append(errs, errors.New("service name must not be empty"))
	}
	if len(o.Controllers) == 0 && len(o.EtcdEndpoints) == 0 {
		errs = append(errs, errors.New("either controllers or etcd endpoints must be set"))
	}
	if _, err := codec.ParseCodecType(o.Codec); err != nil {
		errs = append(errs, err)
	}
	if _, err := loadbalance.New(o.Balancer); err != nil {
		errs = append(errs, err)
	}
	if o.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool size must be at least 1, got %d", o.PoolSize))
	}
	if o.DialTimeout < 0 || o.RequestTimeout < 0 || o.Heartbeat < 0 {
		errs = append(errs, errors.New("timeouts must not be negative"))
	}
	return errors.Join(errs...)
}

// AddFlags adds flags for client options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, namePrefix string) {
	fs.StringVar(&o.ServiceName, namePrefix+"service-name", o.ServiceName, "Service name the authority registers under")
	fs.StringSliceVar(&o.Controllers, namePrefix+"controllers", o.Controllers, "Static authority addresses, used when no etcd endpoints are given")
	fs.StringSliceVar(&o.EtcdEndpoints, namePrefix+"etcd-endpoints", o.EtcdEndpoints, "Etcd endpoints for authority discovery")
	fs.StringVar(&o.EtcdPrefix, namePrefix+"etcd-prefix", o.EtcdPrefix, "Etcd key prefix (default /checkpoint-rpc/)")
	fs.StringVar(&o.Balancer, namePrefix+"balancer", o.Balancer, "Load balancer (round-robin|weighted-random)")
	fs.StringVar(&o.Codec, namePrefix+"codec", o.Codec, "Wire codec (json|binary|msgpack)")
	fs.IntVar(&o.PoolSize, namePrefix+"pool-size", o.PoolSize, "Connections per authority address")
	fs.DurationVar(&o.DialTimeout, namePrefix+"dial-timeout", o.DialTimeout, "Connect timeout")
	fs.DurationVar(&o.RequestTimeout, namePrefix+"request-timeout", o.RequestTimeout, "Per-request timeout, 0 waits forever")
	fs.DurationVar(&o.Heartbeat, namePrefix+"heartbeat", o.Heartbeat, "Heartbeat interval, 0 disables")
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
