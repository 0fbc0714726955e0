// Command activator runs the off-chain reactor that watches the ledger's
// User accounts and drives pending/updating/deleting/banning transitions
// forward, the way the funder command watches and tops up metrics
// publisher balances.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dz-core/serviceability/config"
	"github.com/dz-core/serviceability/pkg/activator"
	"github.com/dz-core/serviceability/pkg/activator/metrics"
	"github.com/dz-core/serviceability/pkg/activator/state"
	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

const defaultInterval = 5 * time.Second

var (
	network                 = flag.String("network", "", "network shortcut (mainnet-beta, testnet, devnet); fills in --ledger-rpc-url and --serviceability-program-id when set")
	ledgerRPCURL            = flag.String("ledger-rpc-url", "", "the url of the ledger rpc")
	serviceabilityProgramID = flag.String("serviceability-program-id", "", "the id of the serviceability program")
	keypairPath             = flag.String("keypair", "", "the path to the activator authority keypair")
	interval                = flag.Duration("interval", defaultInterval, "the interval to poll for user events")
	userTunnelBlock         = flag.String("user-tunnel-block", "172.16.0.0/12", "the global user tunnel net pool, cidr notation")
	publisherDzBlock        = flag.String("multicast-publisher-block", "", "the global multicast publisher dz-ip pool, cidr notation (disabled if empty)")
	onchainAllocation       = flag.Bool("onchain-allocation", false, "use on-chain resource allocation instead of local pools")
	metricsAddr             = flag.String("metrics-addr", "127.0.0.1:2113", "the address the metrics endpoint binds to")
	verbose                 = flag.Bool("verbose", false, "enable verbose logging")
	showVersion             = flag.Bool("version", false, "print the version of the activator and exit")

	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	}))

	if *network != "" {
		netCfg, err := config.NetworkConfigForEnv(*network)
		if err != nil {
			log.Error("Unknown network", "network", *network, "error", err)
			os.Exit(1)
		}
		if *ledgerRPCURL == "" {
			*ledgerRPCURL = netCfg.LedgerPublicRPCURL
		}
		if *serviceabilityProgramID == "" {
			*serviceabilityProgramID = netCfg.ServiceabilityProgramID.String()
		}
	}

	if *ledgerRPCURL == "" {
		log.Error("Missing required flag", "flag", "ledger-rpc-url")
		flag.Usage()
		os.Exit(1)
	}
	if *serviceabilityProgramID == "" {
		log.Error("Missing required flag", "flag", "serviceability-program-id")
		flag.Usage()
		os.Exit(1)
	}
	if *keypairPath == "" {
		log.Error("Missing required flag", "flag", "keypair")
		flag.Usage()
		os.Exit(1)
	}

	keypair, err := solana.PrivateKeyFromSolanaKeygenFile(*keypairPath)
	if err != nil {
		log.Error("Failed to load activator keypair", "error", err)
		os.Exit(1)
	}

	programID, err := solana.PublicKeyFromBase58(*serviceabilityProgramID)
	if err != nil {
		log.Error("Failed to parse program ID", "error", err)
		os.Exit(1)
	}

	tunnelBlock, err := allocator.ParseNetwork(*userTunnelBlock)
	if err != nil {
		log.Error("Failed to parse user tunnel block", "error", err)
		os.Exit(1)
	}

	var publisherAlloc *allocator.IPBlockAllocator
	if *publisherDzBlock != "" {
		pubBlock, err := allocator.ParseNetwork(*publisherDzBlock)
		if err != nil {
			log.Error("Failed to parse multicast publisher block", "error", err)
			os.Exit(1)
		}
		publisherAlloc = allocator.NewIPBlockAllocator(pubBlock, nil)
	}

	reg := prometheus.NewRegistry()
	for _, c := range metrics.Registry() {
		reg.MustRegister(c)
	}

	log.Info("Starting activator",
		"version", version,
		"ledgerRPCURL", *ledgerRPCURL,
		"serviceabilityProgramID", programID,
		"interval", *interval,
		"onchainAllocation", *onchainAllocation,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rpcClient := solanarpc.New(*ledgerRPCURL)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		http.ListenAndServe(*metricsAddr, mux) //nolint
	}()

	devices := state.DeviceMap{}
	proc := &activator.Processor{
		Log: log,
		Submitter: &activator.RPCSubmitter{
			RPC:       rpcClient,
			ProgramID: programID,
			Signer:    keypair,
		},
		Devices:         devices,
		UserTunnelIPs:   allocator.NewIPBlockAllocator(tunnelBlock, nil),
		PublisherDzIPs:  publisherAlloc,
		LinkIDs:         allocator.NewIDAllocator(1, 65535, nil),
		UseOnchainAlloc: *onchainAllocation,
	}

	var lastDevices []serviceability.Device
	proc.FetchDevice = func(devicePK [32]byte) *serviceability.Device {
		for i := range lastDevices {
			if lastDevices[i].PubKey == devicePK {
				return &lastDevices[i]
			}
		}
		return nil
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	log.Info("Activator started, polling for user events")
	for {
		select {
		case <-ctx.Done():
			log.Info("Activator stopped by context", "error", ctx.Err())
			return
		case <-ticker.C:
			accounts, err := rpcClient.GetProgramAccounts(ctx, programID)
			if err != nil {
				log.Error("Failed to fetch program accounts", "error", err)
				continue
			}

			var users []serviceability.User
			devicesSeen := []serviceability.Device{}
			for _, a := range accounts {
				data := a.Account.Data.GetBinary()
				if len(data) == 0 {
					continue
				}
				switch serviceability.AccountType(data[0]) {
				case serviceability.AccountTypeDevice:
					d, err := serviceability.DecodeDevice(data)
					if err != nil {
						log.Error("Failed to decode device account", "pubkey", a.Pubkey, "error", err)
						continue
					}
					d.PubKey = a.Pubkey
					devicesSeen = append(devicesSeen, *d)
				case serviceability.AccountTypeUser:
					u, err := serviceability.DecodeUser(data)
					if err != nil {
						log.Error("Failed to decode user account", "pubkey", a.Pubkey, "error", err)
						continue
					}
					u.PubKey = a.Pubkey
					users = append(users, *u)
				}
			}
			lastDevices = devicesSeen

			for i := range users {
				u := users[i]
				switch u.Status {
				case serviceability.UserStatusPending, serviceability.UserStatusUpdating,
					serviceability.UserStatusDeleting, serviceability.UserStatusPendingBan:
					proc.ProcessUserEvent(ctx, u.PubKey, &u)
				}
			}
		}
	}
}
