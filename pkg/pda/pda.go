// Package pda derives the program-derived addresses used to key every
// ledger account: index-keyed entities (Location, Exchange, Contributor,
// Device, Link), IP/type-keyed entities (User, AccessPass), code-keyed
// entities (Tenant), and the global and per-device resource-extension
// accounts that back the allocator package.
package pda

import (
	"encoding/binary"
	"net"

	"github.com/gagliardetto/solana-go"
)

var (
	seedPrefix   = []byte("doublezero")
	seedLocation = []byte("location")
	seedExchange = []byte("exchange")
	seedContrib  = []byte("contributor")
	seedDevice   = []byte("device")
	seedLink     = []byte("link")
	seedUser     = []byte("user")
	seedAccess   = []byte("accesspass")
	seedTenant   = []byte("tenant")
	seedMgroup   = []byte("multicastgroup")

	seedGlobalState  = []byte("globalstate")
	seedGlobalConfig = []byte("config")

	seedLinkIds           = []byte("linkids")
	seedSegmentRoutingIds = []byte("segmentroutingids")
	seedVrfIds            = []byte("vrfids")
	seedUserTunnelBlock   = []byte("usertunnelblock")
	seedDeviceTunnelBlock = []byte("devicetunnelblock")
	seedMgroupBlock       = []byte("multicastgroupblock")
	seedMpublisherBlock   = []byte("multicastpublisherblock")

	seedTunnelIds   = []byte("tunnelids")
	seedDzPrefixBlk = []byte("dzprefixblock")
)

// indexSeed encodes a monotonic entity index as 16 big-endian bytes, the
// keying convention shared by every index-addressed entity kind.
func indexSeed(index uint64) []byte {
	var b [16]byte
	binary.BigEndian.PutUint64(b[8:], index)
	return b[:]
}

func ipSeed(ip net.IP) []byte {
	v4 := ip.To4()
	if v4 == nil {
		v4 = make([]byte, 4)
	}
	return v4
}

func FindLocationPDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedLocation, indexSeed(index)}, programID)
}

func FindExchangePDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedExchange, indexSeed(index)}, programID)
}

func FindContributorPDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedContrib, indexSeed(index)}, programID)
}

func FindDevicePDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedDevice, indexSeed(index)}, programID)
}

func FindLinkPDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedLink, indexSeed(index)}, programID)
}

func FindMulticastGroupPDA(programID solana.PublicKey, index uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedMgroup, indexSeed(index)}, programID)
}

// FindUserPDA keys a User account by (client IP, user type) — the pair
// that makes every tunnel endpoint a client can request globally unique.
func FindUserPDA(programID solana.PublicKey, clientIP net.IP, userType uint8) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedUser, ipSeed(clientIP), {userType}}, programID)
}

// FindAccessPassPDA keys an AccessPass by (client IP, payer). The
// well-known zero IP is the wildcard key used by allow-all passes.
func FindAccessPassPDA(programID solana.PublicKey, clientIP net.IP, payer solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedAccess, ipSeed(clientIP), payer.Bytes()}, programID)
}

// WildcardAccessPassIP is the (0.0.0.0) key used for a payer's wildcard
// access pass, consulted when no IP-specific pass exists.
func WildcardAccessPassIP() net.IP { return net.IPv4(0, 0, 0, 0) }

func FindTenantPDA(programID solana.PublicKey, code string) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedTenant, []byte(code)}, programID)
}

func FindGlobalStatePDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedGlobalState}, programID)
}

func FindGlobalConfigPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedGlobalConfig}, programID)
}

// --- Global (singleton) resource extensions ---

func FindLinkIdsPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedLinkIds}, programID)
}

func FindSegmentRoutingIdsPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedSegmentRoutingIds}, programID)
}

func FindVrfIdsPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedVrfIds}, programID)
}

func FindUserTunnelBlockPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedUserTunnelBlock}, programID)
}

func FindDeviceTunnelBlockPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedDeviceTunnelBlock}, programID)
}

func FindMulticastGroupBlockPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedMgroupBlock}, programID)
}

func FindMulticastPublisherBlockPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedMpublisherBlock}, programID)
}

// --- Per-device sharded resource extensions ---

func shardSeed(shardIdx uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], shardIdx)
	return b[:]
}

// FindTunnelIdsPDA derives the per-device, per-shard tunnel-ID allocator
// account used by the activator's device-local tunnel-ID pool.
func FindTunnelIdsPDA(programID solana.PublicKey, device solana.PublicKey, shardIdx uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedTunnelIds, device.Bytes(), shardSeed(shardIdx)}, programID)
}

// FindDzPrefixBlockPDA derives the per-device, per-shard dz-prefix IP
// allocator account.
func FindDzPrefixBlockPDA(programID solana.PublicKey, device solana.PublicKey, shardIdx uint32) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedPrefix, seedDzPrefixBlk, device.Bytes(), shardSeed(shardIdx)}, programID)
}
