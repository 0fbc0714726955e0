package config_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/dz-core/serviceability/config"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestConfig_NetworkConfigForEnv(t *testing.T) {
	tests := []struct {
		env  string
		want *config.NetworkConfig
	}{
		{
			env: config.EnvMainnet,
			want: &config.NetworkConfig{
				Moniker:                 config.EnvMainnetBeta,
				LedgerPublicRPCURL:      config.MainnetLedgerPublicRPCURL,
				ServiceabilityProgramID: solana.MustPublicKeyFromBase58(config.MainnetServiceabilityProgramID),
				DeviceLocalASN:          config.MainnetDeviceLocalASN,
				SolanaRPCURL:            config.MainnetSolanaRPC,
			},
		},
		{
			env: config.EnvTestnet,
			want: &config.NetworkConfig{
				Moniker:                 config.EnvTestnet,
				LedgerPublicRPCURL:      config.TestnetLedgerPublicRPCURL,
				ServiceabilityProgramID: solana.MustPublicKeyFromBase58(config.TestnetServiceabilityProgramID),
				DeviceLocalASN:          config.TestnetDeviceLocalASN,
				SolanaRPCURL:            config.TestnetSolanaRPC,
			},
		},
		{
			env: config.EnvDevnet,
			want: &config.NetworkConfig{
				Moniker:                 config.EnvDevnet,
				LedgerPublicRPCURL:      config.DevnetLedgerPublicRPCURL,
				ServiceabilityProgramID: solana.MustPublicKeyFromBase58(config.DevnetServiceabilityProgramID),
				DeviceLocalASN:          config.DevnetDeviceLocalASN,
				SolanaRPCURL:            config.TestnetSolanaRPC,
			},
		},
	}

	for _, test := range tests {
		t.Run(test.env, func(t *testing.T) {
			got, err := config.NetworkConfigForEnv(test.env)
			require.NoError(t, err)
			require.Equal(t, test.want, got)
		})
	}

	t.Run("invalid", func(t *testing.T) {
		_, err := config.NetworkConfigForEnv("invalid")
		require.EqualError(t, err, fmt.Sprintf("invalid environment %q, must be one of: %s, %s, %s", "invalid", config.EnvMainnetBeta, config.EnvTestnet, config.EnvDevnet))
	})
}

func TestConfig_NetworkConfigForEnv_RPCURLOverrideFromEnvVars(t *testing.T) {
	t.Setenv("DZ_LEDGER_RPC_URL", "https://other-rpc-url.com")
	got, err := config.NetworkConfigForEnv(config.EnvMainnet)
	require.NoError(t, err)
	require.Equal(t, "https://other-rpc-url.com", got.LedgerPublicRPCURL)
}
