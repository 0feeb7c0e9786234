package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hueshift/hueshift/pkg/api"
	"github.com/hueshift/hueshift/pkg/config"
	"github.com/hueshift/hueshift/pkg/deploy"
	"github.com/hueshift/hueshift/pkg/dns"
	"github.com/hueshift/hueshift/pkg/events"
	"github.com/hueshift/hueshift/pkg/gateway"
	"github.com/hueshift/hueshift/pkg/kube"
	"github.com/hueshift/hueshift/pkg/log"
	"github.com/hueshift/hueshift/pkg/orchestrator"
	"github.com/hueshift/hueshift/pkg/prober"
	"github.com/hueshift/hueshift/pkg/reconciler"
	"github.com/hueshift/hueshift/pkg/registry"
	"github.com/hueshift/hueshift/pkg/rollback"
	"github.com/hueshift/hueshift/pkg/route"
	"github.com/hueshift/hueshift/pkg/storage"
)

// reconcileInterval is how often the standby slot is re-probed while
// no rollout is running.
const reconcileInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HueShift server",
	Long: `Run the HueShift control server for one application.

The server owns the slot registry, drives rollouts, and exposes the
HTTP control API. With the gateway backend it also serves application
traffic through a local reverse proxy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		reg, err := registry.New(cfg.App, store, cfg.Endpoints())
		if err != nil {
			return fmt.Errorf("failed to bootstrap registry: %w", err)
		}

		checker := prober.NewHTTPChecker(cfg.Probe.Path)
		prb := prober.New(cfg.App, checker)
		params := cfg.RolloutParams()

		var (
			applier deploy.Applier
			backend route.Backend
		)
		switch cfg.Backend {
		case config.BackendKubernetes:
			clientset, err := kube.NewClientset(cfg.Kubernetes.Kubeconfig)
			if err != nil {
				return err
			}
			applier = kube.NewApplier(clientset, cfg.Kubernetes.Namespace)
			backend = kube.NewBackend(clientset, cfg.Kubernetes.Namespace)
			fmt.Printf("✓ Kubernetes backend (namespace %s)\n", cfg.Kubernetes.Namespace)

		case config.BackendGateway:
			gw := gateway.NewProxy(store, cfg.GatewayAddr)
			if err := gw.Restore(ctx, cfg.App); err != nil {
				// First boot has no persisted route yet; the
				// proxy follows the registry's initial active
				// slot instead
				active := reg.GetActive()
				if serr := gw.SetTarget(ctx, cfg.App, active.ID, active.Endpoint); serr != nil {
					return serr
				}
			}
			go func() {
				if err := gw.Start(ctx); err != nil {
					log.Errorf("gateway stopped", err)
				}
			}()
			applier = deploy.NewExternalApplier(checker)
			backend = gw
			fmt.Printf("✓ Gateway backend on %s\n", cfg.GatewayAddr)
		}

		if cfg.DNS.Enabled {
			dnsAddr := cfg.DNS.ListenAddr
			if dnsAddr == "" {
				dnsAddr = dns.DefaultListenAddr
			}
			dnsServer := dns.NewServer(store, &dns.Config{
				ListenAddr: dnsAddr,
				Domain:     cfg.DNS.Domain,
			})
			if err := dnsServer.Start(ctx); err != nil {
				return fmt.Errorf("failed to start discovery DNS: %w", err)
			}
			defer dnsServer.Stop()
			fmt.Printf("✓ Discovery DNS on %s\n", dnsAddr)
		}

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		deployer := deploy.NewDeployer(reg, applier)
		switcher := route.NewSwitcher(reg, store, backend)
		rb := rollback.NewController(reg, switcher, store)
		orch := orchestrator.New(reg, deployer, prb, switcher, rb, store).WithBroker(broker)

		recon := reconciler.NewReconciler(reg, prb, orch, params, reconcileInterval)
		recon.Start()
		defer recon.Stop()
		fmt.Println("✓ Standby reconciler started")

		fmt.Printf("✓ Serving %s (active slot: %s)\n", cfg.App, reg.GetActive().ID)

		server := api.NewServer(orch, reg, store, params).WithBroker(broker)
		return server.Start(ctx, cfg.ListenAddr)
	},
}

func init() {
	serveCmd.Flags().StringP("config", "c", "/etc/hueshift/hueshift.yaml", "Path to config file")
}
