package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gzhole/hostguard/internal/metrics"
	"github.com/gzhole/hostguard/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only posture API and Prometheus metrics",
	Long: `Serve posture results over HTTP. Every request re-evaluates; nothing is
cached. Only read-only routes exist:

  GET /v1/posture   full posture (all probes)
  GET /v1/root      short-circuit root verdict
  GET /v1/debug     debugger verdict
  GET /v1/display   capture-suppression state
  GET /healthz
  GET /metrics`,
	RunE: serveCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr from config)")
	rootCmd.AddCommand(serveCmd)
}

func serveCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.NewRecorder()
	s, err := openSession(rec, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := serveAddr
	if addr == "" {
		addr = s.cfg.Serve.Addr
	}

	handler := server.NewHandler(s.engine, rec.Handler())
	router := handler.Router(server.NewLimiter(s.cfg.Serve.RateLimit, s.cfg.Serve.Burst))

	fmt.Fprintf(os.Stderr, "hostguard: serving posture API on http://%s\n", addr)
	return server.New(addr, router).Run(ctx)
}
