package activator

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/dz-core/serviceability/doublezeroerr"
	"github.com/dz-core/serviceability/pkg/activator/state"
	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

// fakeSubmitter records every call the processor makes instead of signing
// and broadcasting a real transaction.
type fakeSubmitter struct {
	activated []ActivateUserArgs
	rejected  []string
	closed    []([32]byte)
	banned    []([32]byte)

	activateErr error
}

func (f *fakeSubmitter) ActivateUser(ctx context.Context, args ActivateUserArgs) (string, error) {
	if f.activateErr != nil {
		return "", f.activateErr
	}
	f.activated = append(f.activated, args)
	return "sig-activate", nil
}

func (f *fakeSubmitter) RejectUser(ctx context.Context, pubkey [32]byte, reason string) (string, error) {
	f.rejected = append(f.rejected, reason)
	return "sig-reject", nil
}

func (f *fakeSubmitter) CloseAccountUser(ctx context.Context, pubkey [32]byte, onchain bool) (string, error) {
	f.closed = append(f.closed, pubkey)
	return "sig-close", nil
}

func (f *fakeSubmitter) BanUser(ctx context.Context, pubkey [32]byte) (string, error) {
	f.banned = append(f.banned, pubkey)
	return "sig-ban", nil
}

func testDevice(publicIP [4]byte, dzPrefix allocator.Network) *serviceability.Device {
	return &serviceability.Device{
		Common:     serviceability.Common{AccountType: serviceability.AccountTypeDevice, Index: 1},
		PublicIP:   publicIP,
		Status:     serviceability.DeviceStatusActivated,
		DeviceType: serviceability.DeviceTypeEdge,
		Code:       "la2-dz01",
		DzPrefixes: [][5]uint8{{dzPrefix.IP[0], dzPrefix.IP[1], dzPrefix.IP[2], dzPrefix.IP[3], dzPrefix.Bits}},
		MaxUsers:   255,
	}
}

func newTestProcessor(devicePK [32]byte, device *serviceability.Device, tunnelBase allocator.Network) (*Processor, *fakeSubmitter) {
	sub := &fakeSubmitter{}
	p := &Processor{
		Log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Submitter:     sub,
		Devices:       state.DeviceMap{},
		UserTunnelIPs: allocator.NewIPBlockAllocator(tunnelBase, nil),
		FetchDevice: func(pk [32]byte) *serviceability.Device {
			if pk == devicePK {
				return device
			}
			return nil
		},
	}
	return p, sub
}

// S1: IBRL user echoes its client IP as dz_ip and is handed the device's
// public IP as tunnel endpoint plus the first available /31 tunnel net.
func TestActivatorIBRLActivation(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	var userPK [32]byte
	userPK[0] = 2
	user := &serviceability.User{
		Common:       serviceability.Common{AccountType: serviceability.AccountTypeUser},
		UserType:     serviceability.UserTypeIBRL,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 1},
		Status:       serviceability.UserStatusPending,
	}

	p.ProcessUserEvent(context.Background(), userPK, user)

	if len(sub.activated) != 1 {
		t.Fatalf("expected 1 activation, got %d (rejected=%v)", len(sub.activated), sub.rejected)
	}
	got := sub.activated[0]
	if got.TunnelID != 500 {
		t.Errorf("tunnel id = %d, want 500", got.TunnelID)
	}
	if got.TunnelNet.String() != "10.0.0.0/31" {
		t.Errorf("tunnel net = %s, want 10.0.0.0/31", got.TunnelNet.String())
	}
	if !got.DzIP.Equal(net.IPv4(192, 168, 1, 1)) {
		t.Errorf("dz ip = %s, want 192.168.1.1", got.DzIP)
	}
	if !got.TunnelEndpoint.Equal(net.IPv4(192, 168, 1, 2)) {
		t.Errorf("tunnel endpoint = %s, want 192.168.1.2", got.TunnelEndpoint)
	}
}

// S2: IBRLWithAllocatedIP draws a single host address from the device's
// own dz-prefix pool instead of echoing the client IP.
func TestActivatorIBRLWithAllocatedIP(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	var userPK [32]byte
	userPK[0] = 3
	user := &serviceability.User{
		UserType:     serviceability.UserTypeIBRLWithAllocatedIP,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 1},
		Status:       serviceability.UserStatusPending,
	}

	p.ProcessUserEvent(context.Background(), userPK, user)

	if len(sub.activated) != 1 {
		t.Fatalf("expected 1 activation, got %d (rejected=%v)", len(sub.activated), sub.rejected)
	}
	if dz := sub.activated[0].DzIP; !dz.Equal(net.IPv4(10, 0, 0, 1)) {
		t.Errorf("dz ip = %s, want 10.0.0.1", dz)
	}
}

// S3: a multicast publisher draws its dz_ip from the off-chain publisher
// pool rather than its device's local pool.
func TestActivatorMulticastPublisherAllocation(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	pubBase, _ := allocator.ParseNetwork("147.51.126.0/23")
	p.PublisherDzIPs = allocator.NewIPBlockAllocator(pubBase, nil)

	var userPK [32]byte
	userPK[0] = 4
	var groupPK [32]byte
	groupPK[0] = 9
	user := &serviceability.User{
		UserType:     serviceability.UserTypeMulticast,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 10},
		Status:       serviceability.UserStatusPending,
		Publishers:   [][32]byte{groupPK},
	}

	p.ProcessUserEvent(context.Background(), userPK, user)

	if len(sub.activated) != 1 {
		t.Fatalf("expected 1 activation, got %d (rejected=%v)", len(sub.activated), sub.rejected)
	}
	if dz := sub.activated[0].DzIP; !dz.Equal(net.IPv4(147, 51, 126, 1)) {
		t.Errorf("dz ip = %s, want 147.51.126.1", dz)
	}
}

// S4: once a device's dz-prefix pool is exhausted, further allocations
// are rejected with the exact upstream reason string.
func TestActivatorRejectsWhenDzPoolExhausted(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	// A /30 pool gives 3 usable single-host addresses (.1-.3; the
	// allocator skips the network's own address via offset=1), so the
	// 4th user finds the pool exhausted.
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/30")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	for i := 0; i < 4; i++ {
		var userPK [32]byte
		userPK[0] = byte(10 + i)
		user := &serviceability.User{
			UserType:     serviceability.UserTypeIBRLWithAllocatedIP,
			DevicePubKey: devicePK,
			ClientIP:     [4]byte{192, 168, 1, byte(20 + i)},
			Status:       serviceability.UserStatusPending,
		}
		p.ProcessUserEvent(context.Background(), userPK, user)
	}

	if len(sub.rejected) != 1 {
		t.Fatalf("expected exactly 1 reject once the pool is exhausted, got %d", len(sub.rejected))
	}
	if sub.rejected[0] != "Error: No available dz_ip to allocate" {
		t.Errorf("reject reason = %q, want %q", sub.rejected[0], "Error: No available dz_ip to allocate")
	}
}

// S5: deleting an activated user releases its tunnel ID and tunnel net
// back to their pools, and the device's assigned-IP count reflects the
// release of its device-local dz IP.
func TestActivatorDeleteReleasesResources(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	var userPK [32]byte
	userPK[0] = 5
	user := &serviceability.User{
		UserType:     serviceability.UserTypeIBRLWithAllocatedIP,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 1},
		Status:       serviceability.UserStatusPending,
	}
	p.ProcessUserEvent(context.Background(), userPK, user)
	if len(sub.activated) != 1 {
		t.Fatalf("setup: expected activation before delete, rejected=%v", sub.rejected)
	}
	activated := sub.activated[0]

	ds := p.Devices[devicePK]
	if ds.AssignedIPCount() != 1 {
		t.Fatalf("setup: expected 1 assigned ip after activation, got %d", ds.AssignedIPCount())
	}

	user.Status = serviceability.UserStatusDeleting
	user.TunnelID = activated.TunnelID
	user.TunnelNet = to5(activated.TunnelNet)
	user.DzIP = to4(activated.DzIP)

	p.ProcessUserEvent(context.Background(), userPK, user)

	if len(sub.closed) != 1 {
		t.Fatalf("expected 1 close account submission, got %d", len(sub.closed))
	}
	if ds.AssignedIPCount() != 0 {
		t.Errorf("assigned ip count after delete = %d, want 0", ds.AssignedIPCount())
	}
	if n, ok := p.UserTunnelIPs.NextAvailableBlock(0, 2); !ok || n.String() != activated.TunnelNet.String() {
		t.Errorf("tunnel net %s was not freed for reuse", activated.TunnelNet)
	}
}

func to5(n allocator.Network) [5]byte {
	var b [5]byte
	copy(b[:4], n.IP[:])
	b[4] = n.Bits
	return b
}

func to4(ip net.IP) [4]byte {
	var b [4]byte
	v4 := ip.To4()
	if v4 != nil {
		copy(b[:], v4)
	}
	return b
}

// S6: an Activated user is not dispatched to BanUser; the two-step ban
// flow (RequestBanUser -> PendingBan -> BanUser -> Banned) only reaches
// the submitter once the account is actually in PendingBan.
func TestActivatorBanTwoStep(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)

	var userPK [32]byte
	userPK[0] = 6
	user := &serviceability.User{
		UserType:     serviceability.UserTypeIBRL,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 1},
		Status:       serviceability.UserStatusPending,
	}
	p.ProcessUserEvent(context.Background(), userPK, user)
	if len(sub.activated) != 1 {
		t.Fatalf("setup: expected activation, rejected=%v", sub.rejected)
	}

	// Activated is not a status this processor dispatches on at all —
	// only PendingBan reaches BanUser.
	user.Status = serviceability.UserStatusActivated
	p.ProcessUserEvent(context.Background(), userPK, user)
	if len(sub.banned) != 0 {
		t.Fatalf("ban must not be submitted while status is Activated")
	}

	user.Status = serviceability.UserStatusPendingBan
	p.ProcessUserEvent(context.Background(), userPK, user)
	if len(sub.banned) != 1 {
		t.Fatalf("expected 1 ban submission from PendingBan, got %d", len(sub.banned))
	}
}

// logIgnoreInvalidStatus must swallow InvalidStatus submission failures
// without surfacing them as errors, since a concurrent activator run may
// have already moved the account past the status this one observed.
func TestActivatorSwallowsInvalidStatusOnActivate(t *testing.T) {
	var devicePK [32]byte
	devicePK[0] = 1
	dzBase, _ := allocator.ParseNetwork("10.0.0.0/24")
	device := testDevice([4]byte{192, 168, 1, 2}, dzBase)
	tunnelBase, _ := allocator.ParseNetwork("10.0.0.0/16")
	p, sub := newTestProcessor(devicePK, device, tunnelBase)
	sub.activateErr = doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)

	var userPK [32]byte
	userPK[0] = 7
	user := &serviceability.User{
		UserType:     serviceability.UserTypeIBRL,
		DevicePubKey: devicePK,
		ClientIP:     [4]byte{192, 168, 1, 1},
		Status:       serviceability.UserStatusPending,
	}

	// Must not panic and must not record an activation.
	p.ProcessUserEvent(context.Background(), userPK, user)
	if len(sub.activated) != 0 {
		t.Fatalf("activateErr path recorded an activation")
	}
}
