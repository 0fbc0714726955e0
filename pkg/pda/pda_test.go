package pda_test

import (
	"net"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/dz-core/serviceability/pkg/pda"
)

var programID = solana.NewWallet().PublicKey()

func TestFindLocationPDA_DeterministicAndIndexDistinct(t *testing.T) {
	a1, _, err := pda.FindLocationPDA(programID, 1)
	require.NoError(t, err)
	a1Again, _, err := pda.FindLocationPDA(programID, 1)
	require.NoError(t, err)
	require.Equal(t, a1, a1Again)

	a2, _, err := pda.FindLocationPDA(programID, 2)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
}

func TestFindUserPDA_KeyedByIPAndUserType(t *testing.T) {
	ip := net.IPv4(10, 0, 0, 1)
	a, _, err := pda.FindUserPDA(programID, ip, 0)
	require.NoError(t, err)

	b, _, err := pda.FindUserPDA(programID, ip, 1)
	require.NoError(t, err)
	require.NotEqual(t, a, b, "different user types must derive different PDAs for the same IP")

	c, _, err := pda.FindUserPDA(programID, net.IPv4(10, 0, 0, 2), 0)
	require.NoError(t, err)
	require.NotEqual(t, a, c, "different client IPs must derive different PDAs")
}

func TestFindAccessPassPDA_WildcardDiffersFromSpecific(t *testing.T) {
	payer := solana.NewWallet().PublicKey()
	specific, _, err := pda.FindAccessPassPDA(programID, net.IPv4(192, 168, 1, 2), payer)
	require.NoError(t, err)

	wildcard, _, err := pda.FindAccessPassPDA(programID, pda.WildcardAccessPassIP(), payer)
	require.NoError(t, err)

	require.NotEqual(t, specific, wildcard)

	wildcardAgain, _, err := pda.FindAccessPassPDA(programID, net.IPv4(0, 0, 0, 0), payer)
	require.NoError(t, err)
	require.Equal(t, wildcard, wildcardAgain, "explicit 0.0.0.0 must match WildcardAccessPassIP()")
}

func TestFindTenantPDA_KeyedByCode(t *testing.T) {
	a, _, err := pda.FindTenantPDA(programID, "acme")
	require.NoError(t, err)
	b, _, err := pda.FindTenantPDA(programID, "other")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGlobalSingletonPDAs_NoArgsStillDeterministic(t *testing.T) {
	a, _, err := pda.FindGlobalStatePDA(programID)
	require.NoError(t, err)
	b, _, err := pda.FindGlobalStatePDA(programID)
	require.NoError(t, err)
	require.Equal(t, a, b)

	cfg, _, err := pda.FindGlobalConfigPDA(programID)
	require.NoError(t, err)
	require.NotEqual(t, a, cfg, "distinct seeds must derive distinct singleton accounts")
}

func TestPerDeviceShardedPDAs_DistinctPerShardAndDevice(t *testing.T) {
	deviceA := solana.NewWallet().PublicKey()
	deviceB := solana.NewWallet().PublicKey()

	shard0, _, err := pda.FindTunnelIdsPDA(programID, deviceA, 0)
	require.NoError(t, err)
	shard1, _, err := pda.FindTunnelIdsPDA(programID, deviceA, 1)
	require.NoError(t, err)
	require.NotEqual(t, shard0, shard1)

	otherDeviceShard0, _, err := pda.FindTunnelIdsPDA(programID, deviceB, 0)
	require.NoError(t, err)
	require.NotEqual(t, shard0, otherDeviceShard0)

	dzPrefix, _, err := pda.FindDzPrefixBlockPDA(programID, deviceA, 0)
	require.NoError(t, err)
	require.NotEqual(t, shard0, dzPrefix, "distinct resource-extension kinds must not collide for the same device/shard")
}
