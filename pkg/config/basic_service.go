package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

// BasicService is used as a simple base for CLI services like Pprof or
// Prometheus monitoring.
type BasicService struct {
	Enabled bool `yaml:"Enabled"`
	// Addresses holds the list of bind addresses in the form of "address:port".
	Addresses []string `yaml:"Addresses"`
}

// GetAddresses returns the set of unique (in terms of raw strings) pairs
// host:port for the given basic service.
func (s BasicService) GetAddresses() []string {
	addrs := make([]string, 0, len(s.Addresses))
	for _, a := range s.Addresses {
		if !slices.Contains(addrs, a) {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// Validate checks bind addresses of the enabled service.
func (s BasicService) Validate() error {
	if !s.Enabled {
		return nil
	}
	if len(s.Addresses) == 0 {
		return errors.New("no bind addresses")
	}
	for _, a := range s.Addresses {
		if _, _, err := net.SplitHostPort(a); err != nil {
			return fmt.Errorf("bad address %q: %w", a, err)
		}
	}
	return nil
}
