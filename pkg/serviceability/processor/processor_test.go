package processor

import (
	"testing"

	"github.com/dz-core/serviceability/doublezeroerr"
	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

func pk(b byte) [32]byte {
	var k [32]byte
	k[0] = b
	return k
}

func setupDevice(t *testing.T, p *Processor) (locPK, exPK, contribPK, devPK [32]byte) {
	t.Helper()
	locPK, exPK, contribPK, devPK = pk(1), pk(2), pk(3), pk(4)

	if err := p.CreateLocation(locPK, &serviceability.Location{
		Common: serviceability.Common{AccountType: serviceability.AccountTypeLocation},
		Code:   "lax",
	}); err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	if err := p.CreateExchange(exPK, &serviceability.Exchange{
		Common: serviceability.Common{AccountType: serviceability.AccountTypeExchange},
		Code:   "xlax",
	}); err != nil {
		t.Fatalf("CreateExchange: %v", err)
	}
	if err := p.CreateContributor(contribPK, &serviceability.Contributor{
		Common: serviceability.Common{AccountType: serviceability.AccountTypeContributor},
		Code:   "acme",
	}); err != nil {
		t.Fatalf("CreateContributor: %v", err)
	}

	dev := &serviceability.Device{
		LocationPubKey:    locPK,
		ExchangePubKey:    exPK,
		ContributorPubKey: contribPK,
		DeviceType:        serviceability.DeviceTypeEdge,
		PublicIP:          [4]byte{192, 168, 1, 2},
		Code:              "la2-dz01",
		DzPrefixes:        [][5]uint8{{10, 0, 0, 0, 24}},
		MaxUsers:          255,
	}
	if err := p.CreateDevice(devPK, dev); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	if err := p.ActivateDevice(devPK); err != nil {
		t.Fatalf("ActivateDevice: %v", err)
	}
	return
}

func TestDeviceLifecycleReferenceCounts(t *testing.T) {
	p := New(serviceability.NewStore())
	locPK, exPK, contribPK, devPK := setupDevice(t, p)

	if rc := p.Store.Locations[locPK].ReferenceCount; rc != 1 {
		t.Fatalf("location refcount = %d, want 1", rc)
	}

	if err := p.DeleteLocation(locPK); err == nil {
		t.Fatalf("expected DeleteLocation to fail while device references it")
	}

	if err := p.DeleteDevice(devPK); err != nil {
		t.Fatalf("DeleteDevice: %v", err)
	}
	if err := p.CloseAccountDevice(devPK); err != nil {
		t.Fatalf("CloseAccountDevice: %v", err)
	}

	if rc := p.Store.Locations[locPK].ReferenceCount; rc != 0 {
		t.Fatalf("location refcount after close = %d, want 0", rc)
	}
	if err := p.DeleteLocation(locPK); err != nil {
		t.Fatalf("DeleteLocation after refs released: %v", err)
	}
	if err := p.DeleteExchange(exPK); err != nil {
		t.Fatalf("DeleteExchange: %v", err)
	}
	if err := p.DeleteContributor(contribPK); err != nil {
		t.Fatalf("DeleteContributor: %v", err)
	}
}

func TestUserLifecycleAndMaxUsers(t *testing.T) {
	p := New(serviceability.NewStore())
	_, _, _, devPK := setupDevice(t, p)
	p.Store.Devices[devPK].MaxUsers = 1

	payer := pk(99)
	p.Store.AccessPasses[pk(100)] = &serviceability.AccessPass{
		AccountType:     serviceability.AccountTypeAccessPass,
		UserPayer:       payer,
		LastAccessEpoch: 10,
	}

	userPK := pk(5)
	user := &serviceability.User{
		UserType:     serviceability.UserTypeIBRL,
		DevicePubKey: devPK,
		ClientIP:     [4]byte{192, 168, 1, 1},
	}
	if err := p.CreateUser(userPK, user, payer, 5); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got := p.Store.Devices[devPK].UsersCount; got != 1 {
		t.Fatalf("users_count = %d, want 1", got)
	}

	secondPK := pk(6)
	err := p.CreateUser(secondPK, &serviceability.User{
		UserType:     serviceability.UserTypeIBRL,
		DevicePubKey: devPK,
		ClientIP:     [4]byte{192, 168, 1, 9},
	}, payer, 5)
	dzErr, ok := err.(*doublezeroerr.Error)
	if !ok || dzErr.Kind != doublezeroerr.MaxUsersExceeded {
		t.Fatalf("expected MaxUsersExceeded, got %v", err)
	}

	if err := p.ActivateUser(userPK, 500, [5]uint8{10, 0, 0, 0, 31}, user.ClientIP, [4]uint8{}); err != nil {
		t.Fatalf("ActivateUser: %v", err)
	}
	if err := p.RequestBanUser(userPK); err != nil {
		t.Fatalf("RequestBanUser: %v", err)
	}
	if err := p.BanUser(userPK); err != nil {
		t.Fatalf("BanUser: %v", err)
	}

	if err := p.DeleteUser(userPK); err == nil {
		t.Fatalf("expected DeleteUser on a Banned account to fail")
	}
}

func TestCreateUser_AccessPassGate(t *testing.T) {
	p := New(serviceability.NewStore())
	_, _, _, devPK := setupDevice(t, p)

	payer := pk(99)
	tenant := pk(77)
	p.Store.AccessPasses[pk(100)] = &serviceability.AccessPass{
		AccountType:     serviceability.AccountTypeAccessPass,
		UserPayer:       payer,
		LastAccessEpoch: 10,
		TenantAllowlist: [][32]byte{tenant},
	}

	t.Run("no matching pass", func(t *testing.T) {
		err := p.CreateUser(pk(5), &serviceability.User{
			UserType:     serviceability.UserTypeIBRL,
			DevicePubKey: devPK,
			ClientIP:     [4]byte{192, 168, 1, 1},
		}, pk(200), 1)
		dzErr, ok := err.(*doublezeroerr.Error)
		if !ok || dzErr.Kind != doublezeroerr.AccessPassExpired {
			t.Fatalf("expected AccessPassExpired, got %v", err)
		}
	})

	t.Run("epoch past last_access_epoch", func(t *testing.T) {
		err := p.CreateUser(pk(6), &serviceability.User{
			UserType:     serviceability.UserTypeIBRL,
			DevicePubKey: devPK,
			ClientIP:     [4]byte{192, 168, 1, 1},
		}, payer, 11)
		dzErr, ok := err.(*doublezeroerr.Error)
		if !ok || dzErr.Kind != doublezeroerr.AccessPassExpired {
			t.Fatalf("expected AccessPassExpired, got %v", err)
		}
	})

	t.Run("tenant not in allowlist", func(t *testing.T) {
		other := pk(55)
		err := p.CreateUser(pk(7), &serviceability.User{
			UserType:     serviceability.UserTypeIBRL,
			DevicePubKey: devPK,
			ClientIP:     [4]byte{192, 168, 1, 1},
			TenantPubKey: other,
		}, payer, 5)
		dzErr, ok := err.(*doublezeroerr.Error)
		if !ok || dzErr.Kind != doublezeroerr.TenantNotInAccessPassAllowlist {
			t.Fatalf("expected TenantNotInAccessPassAllowlist, got %v", err)
		}
	})

	t.Run("tenant in allowlist admitted", func(t *testing.T) {
		if err := p.CreateUser(pk(8), &serviceability.User{
			UserType:     serviceability.UserTypeIBRL,
			DevicePubKey: devPK,
			ClientIP:     [4]byte{192, 168, 1, 1},
			TenantPubKey: tenant,
		}, payer, 5); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	})
}

func TestLinkLifecycleRequiresUnlinkedInterfaces(t *testing.T) {
	p := New(serviceability.NewStore())
	_, _, _, devAPK := setupDevice(t, p)
	devA := p.Store.Devices[devAPK]

	// Reach the Unlinked precondition CreateLink/ActivateLink require
	// through the real instruction pair, not by mutating the struct.
	if err := p.CreateDeviceInterface(devAPK, serviceability.Interface{Name: "eth0", InterfaceType: serviceability.InterfaceTypePhysical}); err != nil {
		t.Fatalf("CreateDeviceInterface devA: %v", err)
	}
	if err := p.ActivateDeviceInterface(devAPK, "eth0"); err != nil {
		t.Fatalf("ActivateDeviceInterface devA: %v", err)
	}

	devZPK := pk(40)
	devZ := &serviceability.Device{
		LocationPubKey:    devA.LocationPubKey,
		ExchangePubKey:    devA.ExchangePubKey,
		ContributorPubKey: devA.ContributorPubKey,
		DeviceType:        serviceability.DeviceTypeEdge,
		PublicIP:          [4]byte{192, 168, 2, 2},
		Code:              "la2-dz02",
		DzPrefixes:        [][5]uint8{{10, 0, 1, 0, 24}},
		MaxUsers:          255,
	}
	if err := p.CreateDevice(devZPK, devZ); err != nil {
		t.Fatalf("CreateDevice devZ: %v", err)
	}
	if err := p.ActivateDevice(devZPK); err != nil {
		t.Fatalf("ActivateDevice devZ: %v", err)
	}
	if err := p.CreateDeviceInterface(devZPK, serviceability.Interface{Name: "eth0", InterfaceType: serviceability.InterfaceTypePhysical}); err != nil {
		t.Fatalf("CreateDeviceInterface devZ: %v", err)
	}
	if err := p.ActivateDeviceInterface(devZPK, "eth0"); err != nil {
		t.Fatalf("ActivateDeviceInterface devZ: %v", err)
	}

	linkPK := pk(50)
	link := &serviceability.Link{
		SideAPubKey:    devAPK,
		SideZPubKey:    devZPK,
		SideAIfaceName: "eth0",
		SideZIfaceName: "eth0",
		LinkType:       serviceability.LinkTypeWAN,
		Code:           "lax-dz02",
	}
	if err := p.CreateLink(linkPK, link); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}

	linkIDs := allocator.NewIDAllocator(1, 65535, nil)
	tunnelBlock, _ := allocator.ParseNetwork("172.16.0.0/16")
	tunnelAlloc := allocator.NewIPBlockAllocator(tunnelBlock, nil)

	if err := p.ActivateLink(linkPK, linkIDs, tunnelAlloc, true, 0, allocator.Network{}); err != nil {
		t.Fatalf("ActivateLink: %v", err)
	}
	if p.Store.Links[linkPK].Status != serviceability.LinkStatusActivated {
		t.Fatalf("link status = %v, want Activated", p.Store.Links[linkPK].Status)
	}

	secondLinkPK := pk(51)
	if err := p.CreateLink(secondLinkPK, &serviceability.Link{
		SideAPubKey:    devAPK,
		SideZPubKey:    devZPK,
		SideAIfaceName: "eth0",
		SideZIfaceName: "eth0",
		LinkType:       serviceability.LinkTypeWAN,
		Code:           "dup",
	}); err == nil {
		t.Fatalf("expected CreateLink to fail: interfaces already bonded")
	}

	// Bound into an Activated link, the interface cannot be reassigned...
	if err := p.UpdateDeviceInterface(devAPK, "eth0", serviceability.CyoaTypeGREOverFabric, serviceability.DiaTypeNone); err == nil {
		t.Fatalf("expected UpdateDeviceInterface to fail on an Activated interface")
	} else if dzErr, ok := err.(*doublezeroerr.Error); !ok || dzErr.Kind != doublezeroerr.InterfaceHasEdgeAssignment {
		t.Fatalf("expected InterfaceHasEdgeAssignment, got %v", err)
	}

	// ...until the link is torn down and the interface is unlinked again.
	// DeleteLink accepts only Pending or a drained status, and this
	// processor has no drain instruction, so the drain is set directly.
	p.Store.Links[linkPK].Status = serviceability.LinkStatusSoftDrained
	if err := p.DeleteLink(linkPK, linkIDs, tunnelAlloc, true); err != nil {
		t.Fatalf("DeleteLink: %v", err)
	}
	if err := p.UnlinkDeviceInterface(devAPK, "eth0"); err != nil {
		t.Fatalf("UnlinkDeviceInterface: %v", err)
	}
	if got := p.Store.Devices[devAPK].Interfaces[0].Status; got != serviceability.InterfaceStatusUnlinked {
		t.Fatalf("interface status = %v, want Unlinked", got)
	}
	if err := p.UpdateDeviceInterface(devAPK, "eth0", serviceability.CyoaTypeGREOverFabric, serviceability.DiaTypeNone); err != nil {
		t.Fatalf("UpdateDeviceInterface on Unlinked interface: %v", err)
	}
}

func TestDeviceInterfaceRejectAndRemove(t *testing.T) {
	p := New(serviceability.NewStore())
	_, _, _, devPK := setupDevice(t, p)

	if err := p.CreateDeviceInterface(devPK, serviceability.Interface{Name: "eth1", InterfaceType: serviceability.InterfaceTypePhysical}); err != nil {
		t.Fatalf("CreateDeviceInterface: %v", err)
	}
	if err := p.RejectDeviceInterface(devPK, "eth1"); err != nil {
		t.Fatalf("RejectDeviceInterface: %v", err)
	}
	if err := p.DeleteDeviceInterface(devPK, "eth1"); err != nil {
		t.Fatalf("DeleteDeviceInterface: %v", err)
	}
	if err := p.RemoveDeviceInterface(devPK, "eth1"); err != nil {
		t.Fatalf("RemoveDeviceInterface: %v", err)
	}
	if _, ok := p.Store.Devices[devPK].FindInterface("eth1"); ok {
		t.Fatalf("expected eth1 to be removed")
	}
}

func TestFoundationAndQaAllowlistPassThrough(t *testing.T) {
	p := New(serviceability.NewStore())
	p.Store.GlobalState = &serviceability.GlobalState{AccountType: serviceability.AccountTypeGlobalState}

	agent := pk(70)
	if err := p.AddFoundationAllowlist(agent); err != nil {
		t.Fatalf("AddFoundationAllowlist: %v", err)
	}
	if err := p.AddFoundationAllowlist(agent); err != nil {
		t.Fatalf("AddFoundationAllowlist (idempotent): %v", err)
	}
	if got := len(p.Store.GlobalState.FoundationAllowlist); got != 1 {
		t.Fatalf("foundation allowlist len = %d, want 1", got)
	}
	if err := p.RemoveFoundationAllowlist(agent); err != nil {
		t.Fatalf("RemoveFoundationAllowlist: %v", err)
	}
	if got := len(p.Store.GlobalState.FoundationAllowlist); got != 0 {
		t.Fatalf("foundation allowlist len = %d, want 0", got)
	}

	if err := p.AddQaAllowlist(agent); err != nil {
		t.Fatalf("AddQaAllowlist: %v", err)
	}
	if got := len(p.Store.GlobalState.QAAllowlist); got != 1 {
		t.Fatalf("qa allowlist len = %d, want 1", got)
	}
	if err := p.RemoveQaAllowlist(agent); err != nil {
		t.Fatalf("RemoveQaAllowlist: %v", err)
	}
	if got := len(p.Store.GlobalState.QAAllowlist); got != 0 {
		t.Fatalf("qa allowlist len = %d, want 0", got)
	}
}

func TestHealthOracleGate(t *testing.T) {
	p := New(serviceability.NewStore())
	_, _, _, devPK := setupDevice(t, p)
	oracle := pk(80)
	p.Store.GlobalState = &serviceability.GlobalState{AccountType: serviceability.AccountTypeGlobalState, HealthOraclePK: oracle}

	if err := p.SetDeviceHealth(devPK, pk(81), serviceability.DeviceHealthImpaired); err == nil {
		t.Fatalf("expected SetDeviceHealth from a non-oracle key to fail")
	}
	if err := p.SetDeviceHealth(devPK, oracle, serviceability.DeviceHealthImpaired); err != nil {
		t.Fatalf("SetDeviceHealth: %v", err)
	}
	if got := p.Store.Devices[devPK].DeviceHealth; got != serviceability.DeviceHealthImpaired {
		t.Fatalf("device health = %v, want Impaired", got)
	}
}

func TestResourceLifecyclePassThrough(t *testing.T) {
	p := New(serviceability.NewStore())
	ids := allocator.NewIDAllocator(1, 10, nil)

	if err := p.CreateResource(pk(90)); err != nil {
		t.Fatalf("CreateResource: %v", err)
	}
	id, err := p.AllocateResource(ids)
	if err != nil {
		t.Fatalf("AllocateResource: %v", err)
	}
	if err := p.DeallocateResource(ids, id); err != nil {
		t.Fatalf("DeallocateResource: %v", err)
	}
	if err := p.CloseResource(pk(90)); err != nil {
		t.Fatalf("CloseResource: %v", err)
	}
}
