package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkingovr/navguard/internal/audit"
	"github.com/tkingovr/navguard/internal/dashboard"
	"github.com/tkingovr/navguard/internal/guard"
	"github.com/tkingovr/navguard/internal/metrics"
	httpproxy "github.com/tkingovr/navguard/internal/proxy/http"
)

var (
	proxyTarget   string
	proxyListen   string
	proxyDash     bool
	proxyDashAddr string
	proxyAuditDir string
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Start the guarding reverse proxy",
	Long: `Start an HTTP reverse proxy that redirects visitors without a login
token to the login page, unless the requested path is whitelisted.
Every decision is written to the audit log.`,
	Example: `  navguard proxy -c navguard.yaml --target http://localhost:4000 --listen :3000
  navguard proxy --target http://localhost:4000 --dashboard`,
	RunE: runProxy,
}

func init() {
	proxyCmd.Flags().StringVar(&proxyTarget, "target", "", "upstream app URL (required)")
	proxyCmd.Flags().StringVar(&proxyListen, "listen", ":3000", "listen address")
	proxyCmd.Flags().BoolVar(&proxyDash, "dashboard", false, "also serve the dashboard API")
	proxyCmd.Flags().StringVar(&proxyDashAddr, "dashboard-addr", "", "dashboard listen address (default from config)")
	proxyCmd.Flags().StringVarP(&proxyAuditDir, "audit-dir", "a", "", "audit log directory (default from config)")
	_ = proxyCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(proxyCmd)
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if proxyAuditDir != "" {
		cfg.LogDir = proxyAuditDir
	}
	if proxyDashAddr != "" {
		cfg.DashboardAddr = proxyDashAddr
	}

	opts, err := guardOptions(cfg)
	if err != nil {
		return err
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	m := metrics.New()
	recorder := guard.MultiRecorder{auditStore, m}
	g := guard.New(opts)

	proxy, err := httpproxy.NewProxy(proxyTarget, g.Config(), recorder, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	if proxyDash {
		dash := dashboard.NewServer(cfg.DashboardAddr, auditStore, g, m.Handler(), logger)
		go func() {
			if err := dash.ListenAndServe(ctx); err != nil {
				logger.Error("dashboard error", "error", err)
			}
		}()
	}

	logger.Info("guard configured",
		slog.String("config", cfgFile),
		slog.Any("whitelist", g.Config().WhiteList()),
		slog.Bool("policy", g.Config().HasPolicy()),
		slog.String("audit_dir", cfg.LogDir),
	)

	return proxy.ListenAndServe(ctx, proxyListen)
}
