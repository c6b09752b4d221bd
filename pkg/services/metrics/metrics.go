/*
Package metrics implements HTTP services exposing client metrics to
Prometheus and runtime profiles via pprof.
*/
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nspcc-dev/substrate-go/pkg/config"
	"go.uber.org/zap"
)

// readHeaderTimeout limits request header reading of monitoring servers.
const readHeaderTimeout = 5 * time.Second

// Service serves metrics.
type Service struct {
	http        []*http.Server
	config      config.BasicService
	log         *zap.Logger
	serviceType string

	lock      sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// NewService configures logger and returns new service instance.
func NewService(name string, httpServers []*http.Server, cfg config.BasicService, log *zap.Logger) *Service {
	return &Service{
		http:        httpServers,
		config:      cfg,
		serviceType: name,
		log:         log.With(zap.String("service", name)),
	}
}

// newHTTPService creates a Service with a server per unique configured
// address, all sharing the handler.
func newHTTPService(name string, cfg config.BasicService, handler http.Handler, log *zap.Logger) *Service {
	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return NewService(name, srvs, cfg, log)
}

// Name returns service name.
func (ms *Service) Name() string {
	return ms.serviceType
}

// Start runs http service with the exposed endpoint on the configured port.
// It binds all addresses before returning, so bind errors are reported
// synchronously.
func (ms *Service) Start() error {
	if !ms.config.Enabled {
		ms.log.Info("service hasn't started since it's disabled")
		return nil
	}
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if ms.listeners != nil {
		return errors.New("already started")
	}
	for _, srv := range ms.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			for _, l := range ms.listeners {
				_ = l.Close()
			}
			ms.listeners = nil
			return err
		}
		ms.listeners = append(ms.listeners, ln)
	}
	for i, srv := range ms.http {
		ln := ms.listeners[i]
		ms.log.Info("service is running", zap.String("endpoint", ln.Addr().String()))
		ms.wg.Add(1)
		go func() {
			defer ms.wg.Done()
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				ms.log.Error("failed to serve", zap.String("endpoint", ln.Addr().String()), zap.Error(err))
			}
		}()
	}
	return nil
}

// Addresses returns the addresses the service listens at, they're only
// known after Start.
func (ms *Service) Addresses() []string {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	addrs := make([]string, 0, len(ms.listeners))
	for _, l := range ms.listeners {
		addrs = append(addrs, l.Addr().String())
	}
	return addrs
}

// ShutDown stops the service.
func (ms *Service) ShutDown() {
	if !ms.config.Enabled {
		return
	}
	ms.lock.Lock()
	defer ms.lock.Unlock()
	if ms.listeners == nil {
		return
	}
	for i, srv := range ms.http {
		ms.log.Info("shutting down service", zap.String("endpoint", ms.listeners[i].Addr().String()))
		err := srv.Shutdown(context.Background())
		if err != nil {
			ms.log.Error("can't shut service down", zap.Error(err))
		}
	}
	ms.wg.Wait()
	ms.listeners = nil
	_ = ms.log.Sync()
}
