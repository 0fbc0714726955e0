// Package state is the activator's local cache of device placement data:
// one DeviceState per device the activator has observed a user reference,
// lazily populated, holding a per-device tunnel-ID allocator and dz-prefix
// IP allocator mirroring (but never preceding) the ledger's own resource
// extensions, plus the set of (client IP -> tunnel endpoint) reservations
// currently in use.
package state

import (
	"net"

	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

// DefaultTunnelIDRangeStart is the first tunnel ID a freshly-seen device
// hands out. Devices persist no allocator state of their own for tunnel
// IDs below this threshold; they are reserved for statically-configured
// tunnels outside the activator's control.
const DefaultTunnelIDRangeStart = 500

// DefaultTunnelIDRangeEnd is the last tunnel ID (inclusive) a device's
// local allocator will hand out — a 16-bit GRE key space.
const DefaultTunnelIDRangeEnd = 65535

// DeviceState is the activator's placement-relevant view of one device:
// its last-observed record, a tunnel-ID allocator, a dz-prefix IP
// allocator, and the endpoints currently reserved by connected clients.
type DeviceState struct {
	Device *serviceability.Device

	tunnelIDs *allocator.IDAllocator
	dzIPs     *allocator.IPBlockAllocator

	// endpointByClient tracks which tunnel endpoint each connected client
	// IP was handed, so release can free the reservation on delete/ban.
	endpointByClient map[[4]byte]net.IP
}

// New builds a DeviceState for a freshly-observed device, seeding its
// tunnel-ID allocator at DefaultTunnelIDRangeStart and its dz-prefix
// allocator from the device's first dz prefix (the device-local pool the
// activator draws single-host dz IPs from for IBRLWithAllocatedIP and
// EdgeFiltering users).
func New(device *serviceability.Device) *DeviceState {
	ds := &DeviceState{
		Device:           device,
		tunnelIDs:        allocator.NewIDAllocator(DefaultTunnelIDRangeStart, DefaultTunnelIDRangeEnd, nil),
		endpointByClient: map[[4]byte]net.IP{},
	}
	if len(device.DzPrefixes) > 0 {
		base := allocator.Network{Bits: device.DzPrefixes[0][4]}
		copy(base.IP[:], device.DzPrefixes[0][:4])
		ds.dzIPs = allocator.NewIPBlockAllocator(base, nil)
	}
	return ds
}

// GetNextTunnelID allocates the next free device-local tunnel ID.
func (ds *DeviceState) GetNextTunnelID() (uint16, bool) {
	id, ok := ds.tunnelIDs.Allocate()
	return uint16(id), ok
}

// GetNextDzIP allocates the next free single-host address from the
// device's own dz-prefix pool, skipping the network address (offset=1,
// prefixDelta=1 — see pkg/allocator's NextAvailableBlock contract).
func (ds *DeviceState) GetNextDzIP() (net.IP, bool) {
	if ds.dzIPs == nil {
		return nil, false
	}
	n, ok := ds.dzIPs.NextAvailableBlock(1, 1)
	if !ok {
		return nil, false
	}
	return n.Addr(), true
}

// Release returns a previously-allocated dz IP and tunnel ID to their
// respective pools. dzIP of 0.0.0.0 (on-chain-allocated, never tracked
// locally) is a no-op for the IP side.
func (ds *DeviceState) Release(dzIP net.IP, tunnelID uint16) {
	ds.tunnelIDs.Free(uint32(tunnelID))
	if ds.dzIPs == nil || dzIP == nil || dzIP.Equal(net.IPv4zero) {
		return
	}
	v4 := dzIP.To4()
	if v4 == nil {
		return
	}
	var ip [4]byte
	copy(ip[:], v4)
	ds.dzIPs.UnassignBlock(allocator.Network{IP: ip, Bits: 32})
}

// IsValidTunnelEndpoint reports whether ep is one this device can serve
// tunnels on — currently just the device's own public IP, matching the
// single-endpoint-per-device placement model.
func (ds *DeviceState) IsValidTunnelEndpoint(ep net.IP) bool {
	return ep != nil && net.IP(ds.Device.PublicIP[:]).Equal(ep)
}

// GetAvailableTunnelEndpoint returns the tunnel endpoint to hand a client
// that did not request a specific one: the device's own public IP.
func (ds *DeviceState) GetAvailableTunnelEndpoint(clientIP [4]byte) (net.IP, bool) {
	ep := net.IP(ds.Device.PublicIP[:])
	if ep.IsUnspecified() {
		return nil, false
	}
	return ep, true
}

// RegisterTunnelEndpoint records that clientIP is now using ep, for
// release bookkeeping on delete/ban.
func (ds *DeviceState) RegisterTunnelEndpoint(clientIP [4]byte, ep net.IP) {
	ds.endpointByClient[clientIP] = ep
}

// ReleaseTunnelEndpoint forgets clientIP's endpoint reservation.
func (ds *DeviceState) ReleaseTunnelEndpoint(clientIP [4]byte, ep net.IP) {
	delete(ds.endpointByClient, clientIP)
}

// AssignedIPCount reports how many dz IPs are currently assigned from
// this device's pool, for the device_assigned_ips gauge.
func (ds *DeviceState) AssignedIPCount() int {
	if ds.dzIPs == nil {
		return 0
	}
	return len(ds.dzIPs.AssignedBlocks())
}

// TotalIPCount reports the device pool's total addressable capacity, for
// the device_total_ips gauge.
func (ds *DeviceState) TotalIPCount() int {
	if ds.dzIPs == nil {
		return 0
	}
	bits := ds.dzIPs.Base().Bits
	if bits > 32 {
		return 0
	}
	return 1 << (32 - bits)
}

// DeviceMap is the activator's lazily-populated device cache, keyed by
// device pubkey.
type DeviceMap map[[32]byte]*DeviceState

// GetOrInsert returns the cached DeviceState for devicePK, constructing
// it from fetch if not already present. fetch typically performs a
// ledger lookup; a nil return (device not found) is propagated as ok=false.
func (m DeviceMap) GetOrInsert(devicePK [32]byte, fetch func() *serviceability.Device) (*DeviceState, bool) {
	if ds, ok := m[devicePK]; ok {
		return ds, true
	}
	d := fetch()
	if d == nil {
		return nil, false
	}
	ds := New(d)
	m[devicePK] = ds
	return ds, true
}
