package config

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
)

const (
	EnvMainnetBeta = "mainnet-beta"
	EnvMainnet     = "mainnet"
	EnvTestnet     = "testnet"
	EnvDevnet      = "devnet"
	EnvLocalnet    = "localnet"
)

// NetworkConfig is the resolved set of endpoints and IDs a component
// needs to talk to one network, with DZ_LEDGER_RPC_URL and
// SOLANA_RPC_URL able to override the published defaults.
type NetworkConfig struct {
	Moniker                 string
	LedgerPublicRPCURL      string
	ServiceabilityProgramID solana.PublicKey
	DeviceLocalASN          uint32
	SolanaRPCURL            string
}

func NetworkConfigForEnv(env string) (*NetworkConfig, error) {
	var config *NetworkConfig
	switch env {
	case EnvMainnetBeta, EnvMainnet:
		programID, err := solana.PublicKeyFromBase58(MainnetServiceabilityProgramID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse serviceability program ID: %w", err)
		}
		config = &NetworkConfig{
			Moniker:                 EnvMainnetBeta,
			LedgerPublicRPCURL:      MainnetLedgerPublicRPCURL,
			ServiceabilityProgramID: programID,
			DeviceLocalASN:          MainnetDeviceLocalASN,
			SolanaRPCURL:            MainnetSolanaRPC,
		}
	case EnvTestnet:
		programID, err := solana.PublicKeyFromBase58(TestnetServiceabilityProgramID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse serviceability program ID: %w", err)
		}
		config = &NetworkConfig{
			Moniker:                 EnvTestnet,
			LedgerPublicRPCURL:      TestnetLedgerPublicRPCURL,
			ServiceabilityProgramID: programID,
			DeviceLocalASN:          TestnetDeviceLocalASN,
			SolanaRPCURL:            TestnetSolanaRPC,
		}
	case EnvDevnet:
		programID, err := solana.PublicKeyFromBase58(DevnetServiceabilityProgramID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse serviceability program ID: %w", err)
		}
		config = &NetworkConfig{
			Moniker:                 EnvDevnet,
			LedgerPublicRPCURL:      DevnetLedgerPublicRPCURL,
			ServiceabilityProgramID: programID,
			DeviceLocalASN:          DevnetDeviceLocalASN,
			SolanaRPCURL:            TestnetSolanaRPC,
		}
	case EnvLocalnet:
		programID, err := solana.PublicKeyFromBase58(LocalnetServiceabilityProgramID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse serviceability program ID: %w", err)
		}
		config = &NetworkConfig{
			Moniker:                 EnvLocalnet,
			LedgerPublicRPCURL:      LocalnetLedgerPublicRPCURL,
			ServiceabilityProgramID: programID,
			DeviceLocalASN:          LocalnetDeviceLocalASN,
			SolanaRPCURL:            LocalnetSolanaRPC,
		}
	default:
		// We intentionally do not include localnet in the error message.
		return nil, fmt.Errorf("invalid environment %q, must be one of: %s, %s, %s", env, EnvMainnetBeta, EnvTestnet, EnvDevnet)
	}

	if v := os.Getenv("DZ_LEDGER_RPC_URL"); v != "" {
		config.LedgerPublicRPCURL = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		config.SolanaRPCURL = v
	}
	return config, nil
}
