package metrics

import (
	"net/http"
	"net/http/pprof"

	"github.com/nspcc-dev/substrate-go/pkg/config"
	"go.uber.org/zap"
)

// PprofPath is the prefix of runtime profile endpoints.
const PprofPath = "/debug/pprof/"

// pprofHandlers are served under PprofPath, named profiles (goroutine,
// heap, mutex) are handled by the index.
var pprofHandlers = map[string]http.HandlerFunc{
	"":        pprof.Index,
	"cmdline": pprof.Cmdline,
	"profile": pprof.Profile,
	"symbol":  pprof.Symbol,
	"trace":   pprof.Trace,
}

// NewPprofService creates a service exposing runtime profiles of the
// process. It's mostly useful to look at the subscription dispatcher and
// connection goroutines of long-running commands.
func NewPprofService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		return nil
	}
	mux := http.NewServeMux()
	for name, h := range pprofHandlers {
		mux.HandleFunc(PprofPath+name, h)
	}
	return newHTTPService("Pprof", cfg, mux, log)
}
