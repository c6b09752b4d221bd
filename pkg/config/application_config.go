package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/nspcc-dev/substrate-go/pkg/encoding/address"
	"go.uber.org/zap/zapcore"
)

// ApplicationConfiguration is the configuration of the CLI.
type ApplicationConfiguration struct {
	// Endpoint is the node websocket address.
	Endpoint       string        `yaml:"Endpoint"`
	DialTimeout    time.Duration `yaml:"DialTimeout"`
	RequestTimeout time.Duration `yaml:"RequestTimeout"`
	PageSize       uint32        `yaml:"PageSize"`

	LogLevel    string `yaml:"LogLevel"`
	LogPath     string `yaml:"LogPath"`
	LogEncoding string `yaml:"LogEncoding"`

	// SS58Prefix is the network prefix used to print addresses, 42 (generic
	// Substrate) by default.
	SS58Prefix *uint16 `yaml:"SS58Prefix,omitempty"`
	// Signer is a secret URI of the default signer, it's better to pass it
	// via the command line prompt for anything but development keys.
	Signer string `yaml:"Signer"`

	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	if a.Endpoint != "" {
		u, err := url.Parse(a.Endpoint)
		if err != nil {
			return fmt.Errorf("bad Endpoint: %w", err)
		}
		if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return fmt.Errorf("bad Endpoint %q: ws:// or wss:// URL expected", a.Endpoint)
		}
	}
	if a.DialTimeout < 0 || a.RequestTimeout < 0 {
		return errors.New("negative timeout")
	}
	if a.LogLevel != "" {
		if _, err := zapcore.ParseLevel(a.LogLevel); err != nil {
			return fmt.Errorf("bad LogLevel: %w", err)
		}
	}
	if a.LogEncoding != "" && a.LogEncoding != "console" && a.LogEncoding != "json" {
		return fmt.Errorf("bad LogEncoding %q: console or json expected", a.LogEncoding)
	}
	if a.SS58Prefix != nil && *a.SS58Prefix > address.MaxPrefix {
		return fmt.Errorf("SS58Prefix %d is out of range", *a.SS58Prefix)
	}
	if err := a.Prometheus.Validate(); err != nil {
		return fmt.Errorf("Prometheus: %w", err)
	}
	if err := a.Pprof.Validate(); err != nil {
		return fmt.Errorf("Pprof: %w", err)
	}
	return nil
}
