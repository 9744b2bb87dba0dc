package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	apidispatch "github.com/BusBom/rpi-server/api/dispatch"
	apistation "github.com/BusBom/rpi-server/api/station"
)

// Handler returns the read-only API: station status, dwell statistics and,
// when a cycle log is configured, the cycle log query.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/station/status", apistation.NewStatusHandler(s.status))
	mux.Handle("/api/station/dwell", apistation.NewDwellHandler(s.dwell))
	if s.logs != nil {
		mux.Handle("/api/dispatch/logs", apidispatch.NewLogHandler(s.logs, s.cfg.API.Token))
	}
	return mux
}

func (s *Service) serveAPI(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api server shutdown: %v", err)
		}
		cancel()
	}()
	s.log.Infof("serving api on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
