package serviceability

import "testing"

func TestDeviceCodecRoundTrip(t *testing.T) {
	want := &Device{
		Common: Common{
			AccountType:    AccountTypeDevice,
			Owner:          [32]byte{1},
			BumpSeed:       7,
			Index:          42,
			ReferenceCount: 3,
		},
		LocationPubKey:         [32]byte{2},
		ExchangePubKey:         [32]byte{3},
		DeviceType:             DeviceTypeEdge,
		PublicIP:               [4]byte{192, 168, 1, 2},
		Status:                 DeviceStatusActivated,
		Code:                   "la2-dz01",
		DzPrefixes:             [][5]uint8{{10, 0, 0, 0, 24}, {10, 0, 1, 0, 24}},
		MetricsPublisherPubKey: [32]byte{4},
		ContributorPubKey:      [32]byte{5},
		MgmtVrf:                "mgmt",
		Interfaces: []Interface{
			{Status: InterfaceStatusUnlinked, Name: "eth0", InterfaceType: InterfaceTypePhysical, Bandwidth: 10_000_000_000, Mtu: 9000, VlanID: 100, NodeSegmentIdx: 1},
			{Status: InterfaceStatusActivated, Name: "lo0", InterfaceType: InterfaceTypeLoopback, LoopbackType: LoopbackTypeIpv4, UserTunnelEndpoint: true},
		},
		UsersCount:          10,
		MaxUsers:            255,
		DeviceHealth:        DeviceHealthReadyForUsers,
		DeviceDesiredStatus: DeviceDesiredStatusActivated,
		UnicastUsersCount:   8,
		MulticastUsersCount: 2,
		MaxUnicastUsers:     200,
		MaxMulticastUsers:   55,
	}

	got, err := DecodeDevice(EncodeDevice(want))
	if err != nil {
		t.Fatalf("DecodeDevice: %v", err)
	}
	if got.Code != want.Code || got.Status != want.Status || len(got.Interfaces) != 2 ||
		got.Interfaces[1].UserTunnelEndpoint != true || got.MaxMulticastUsers != 55 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}

func TestDeviceCodecForwardCompatMissingTrailingFields(t *testing.T) {
	// A record written before the health/desired-status/count fields existed
	// truncates right after MaxUsers - it must still decode, with the new
	// fields defaulting rather than erroring.
	d := &Device{
		Common:     Common{AccountType: AccountTypeDevice},
		Code:       "old",
		DzPrefixes: [][5]uint8{{10, 0, 0, 0, 24}},
		MaxUsers:   5,
	}
	full := EncodeDevice(d)
	truncated := full[:len(full)-1-1-2-2-2-2] // drop the six trailing TryRead* fields

	got, err := DecodeDevice(truncated)
	if err != nil {
		t.Fatalf("DecodeDevice on truncated record: %v", err)
	}
	if got.DeviceHealth != DeviceHealthUnknown || got.DeviceDesiredStatus != DeviceDesiredStatusPending {
		t.Fatalf("expected zero-value defaults, got health=%v desired=%v", got.DeviceHealth, got.DeviceDesiredStatus)
	}
}

func TestUserCodecRoundTrip(t *testing.T) {
	want := &User{
		Common:       Common{AccountType: AccountTypeUser, Index: 9},
		UserType:     UserTypeMulticast,
		TenantPubKey: [32]byte{1},
		DevicePubKey: [32]byte{2},
		CyoaType:     CyoaTypeGREOverFabric,
		ClientIP:     [4]byte{192, 168, 1, 1},
		DzIP:         [4]byte{10, 0, 0, 5},
		TunnelID:     501,
		TunnelNet:    [5]uint8{172, 16, 0, 0, 31},
		Status:       UserStatusActivated,
		Publishers:   [][32]byte{{9}},
		Subscribers:  [][32]byte{{10}, {11}},
	}

	got, err := DecodeUser(EncodeUser(want))
	if err != nil {
		t.Fatalf("DecodeUser: %v", err)
	}
	if got.UserType != want.UserType || got.TunnelID != want.TunnelID || len(got.Subscribers) != 2 {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
}
