package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"checkpoint-rpc/internal/logging"
)

// options configures the authority daemon.
type options struct {
	Listen         string        `json:"listen" mapstructure:"listen"`
	Advertise      string        `json:"advertise" mapstructure:"advertise"`
	ServiceName    string        `json:"service-name" mapstructure:"service-name"`
	EtcdEndpoints  []string      `json:"etcd-endpoints" mapstructure:"etcd-endpoints"`
	EtcdPrefix     string        `json:"etcd-prefix" mapstructure:"etcd-prefix"`
	DialTimeout    time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	LeaseTTL       int64         `json:"lease-ttl" mapstructure:"lease-ttl"`
	HandlerTimeout time.Duration `json:"handler-timeout" mapstructure:"handler-timeout"`
	RateLimit      float64       `json:"rate-limit" mapstructure:"rate-limit"`
	RateBurst      int           `json:"rate-burst" mapstructure:"rate-burst"`
	AutoCreate     bool          `json:"auto-create" mapstructure:"auto-create"`
	Steps          []string      `json:"steps" mapstructure:"steps"`

	Log *logging.Options `json:"log" mapstructure:"log"`
}

func newOptions() *options {
	return &options{
		Listen:         ":6817",
		ServiceName:    "ckptctld",
		DialTimeout:    5 * time.Second,
		LeaseTTL:       10,
		HandlerTimeout: 5 * time.Second,
		RateBurst:      100,
		AutoCreate:     true,
		Log:            logging.NewOptions(),
	}
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Listen, "listen", o.Listen, "Address to accept checkpoint requests on")
	fs.StringVar(&o.Advertise, "advertise", o.Advertise, "Address registered in etcd (default: the listen address)")
	fs.StringVar(&o.ServiceName, "service-name", o.ServiceName, "Service name to register under")
	fs.StringSliceVar(&o.EtcdEndpoints, "etcd-endpoints", o.EtcdEndpoints, "Etcd endpoints; registration is skipped when empty")
	fs.StringVar(&o.EtcdPrefix, "etcd-prefix", o.EtcdPrefix, "Etcd key prefix (default /checkpoint-rpc/)")
	fs.DurationVar(&o.DialTimeout, "dial-timeout", o.DialTimeout, "Etcd dial timeout")
	fs.Int64Var(&o.LeaseTTL, "lease-ttl", o.LeaseTTL, "Registration lease TTL in seconds")
	fs.DurationVar(&o.HandlerTimeout, "handler-timeout", o.HandlerTimeout, "Maximum time to answer one request, 0 disables")
	fs.Float64Var(&o.RateLimit, "rate-limit", o.RateLimit, "Requests per second, 0 disables")
	fs.IntVar(&o.RateBurst, "rate-burst", o.RateBurst, "Request burst allowed above the rate limit")
	fs.BoolVar(&o.AutoCreate, "auto-create", o.AutoCreate, "Accept requests for job steps not added with --steps")
	fs.StringSliceVar(&o.Steps, "steps", o.Steps, "Job steps (JOB.STEP) known at startup")
	o.Log.AddFlags(fs)
}

func (o *options) validate() error {
	var errs []error
	if o.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if len(o.EtcdEndpoints) > 0 && o.LeaseTTL < 1 {
		errs = append(errs, fmt.Errorf("lease TTL must be at least 1s, got %d", o.LeaseTTL))
	}
	if o.HandlerTimeout < 0 {
		errs = append(errs, errors.New("handler timeout must not be negative"))
	}
	if o.RateLimit < 0 || (o.RateLimit > 0 && o.RateBurst < 1) {
		errs = append(errs, errors.New("rate limit must not be negative and needs a burst of at least 1"))
	}
	for _, s := range o.Steps {
		if _, _, err := parseStep(s); err != nil {
			errs = append(errs, err)
		}
	}
	errs = append(errs, o.Log.Validate())
	return errors.Join(errs...)
}
