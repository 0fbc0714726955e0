package serviceability

import (
	"net"

	"github.com/dz-core/serviceability/doublezeroerr"
)

// isGlobal reports whether ip is routable across the overlay (not
// unspecified, loopback, link-local, or multicast). RFC1918 space is
// accepted: contributor networks and the dz-prefix test fixtures
// throughout this system's own scenarios use private ranges (e.g.
// 192.168.1.2, 10.0.0.0/24) as stand-ins for addresses that are globally
// routable on the contributor's own network, not the public internet.
func isGlobal(ip [4]byte) bool {
	n := net.IP(ip[:])
	return !(n.IsUnspecified() || n.IsLoopback() || n.IsLinkLocalUnicast() ||
		n.IsLinkLocalMulticast() || n.IsMulticast())
}

var zeroPubkey [32]byte

// Validate checks Device's standalone invariants: account type, code
// length, non-empty location/exchange references, a globally-routable
// public IP (except for Transit devices, which face inward), at least one
// global-unicast dz prefix, and a consistent user-count/limit pair.
// Grounded on original_source's doublezero-serviceability state/device.rs
// Validate impl.
func (d *Device) Validate() error {
	if d.AccountType != AccountTypeDevice {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", d.AccountType)
	}
	if len(d.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(d.Code))
	}
	if d.LocationPubKey == zeroPubkey {
		return doublezeroerr.New(doublezeroerr.InvalidLocation, "invalid location id")
	}
	if d.ExchangePubKey == zeroPubkey {
		return doublezeroerr.New(doublezeroerr.InvalidExchange, "invalid exchange id")
	}
	if d.DeviceType != DeviceTypeTransit && !isGlobal(d.PublicIP) {
		return doublezeroerr.New(doublezeroerr.InvalidClientIP, "invalid public ip: %v", net.IP(d.PublicIP[:]))
	}
	if len(d.DzPrefixes) == 0 {
		return doublezeroerr.New(doublezeroerr.NoDzPrefixes, "no device prefixes present")
	}
	for _, p := range d.DzPrefixes {
		var ip [4]byte
		copy(ip[:], p[:4])
		if !isGlobal(ip) {
			return doublezeroerr.New(doublezeroerr.InvalidDzPrefix, "invalid device prefix: %v/%d", net.IP(ip[:]), p[4])
		}
	}
	if d.UsersCount > d.MaxUsers {
		return doublezeroerr.New(doublezeroerr.MaxUsersExceeded, "users_count=%d max_users=%d", d.UsersCount, d.MaxUsers)
	}
	for i := range d.Interfaces {
		if err := d.Interfaces[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// FindInterface returns a pointer to the named interface, so callers can
// mutate its status/assignment in place.
func (d *Device) FindInterface(name string) (*Interface, bool) {
	for i := range d.Interfaces {
		if d.Interfaces[i].Name == name {
			return &d.Interfaces[i], true
		}
	}
	return nil, false
}

// IsEligibleForProvisioning reports whether the device may accept a new
// user: activated, Edge or Hybrid, and under its user-slot limit.
func (d *Device) IsEligibleForProvisioning() bool {
	return d.Status == DeviceStatusActivated &&
		(d.DeviceType == DeviceTypeEdge || d.DeviceType == DeviceTypeHybrid) &&
		d.MaxUsers > 0 && d.UsersCount < d.MaxUsers
}

// Validate checks an Interface's own invariants: a non-empty name and a
// type that is not Invalid.
func (i *Interface) Validate() error {
	if i.Name == "" {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "interface name must not be empty")
	}
	if i.InterfaceType == InterfaceTypeInvalid {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "interface type must not be Invalid")
	}
	return nil
}

// HasEdgeAssignment reports whether the interface is currently bound to
// a user tunnel endpoint or a CYOA/DIA assignment, any of which blocks
// binding the interface into a link and updating or deleting the
// interface (InterfaceHasEdgeAssignment).
func (i *Interface) HasEdgeAssignment() bool {
	return i.UserTunnelEndpoint || i.CyoaType != CyoaTypeNone || i.DiaType != DiaTypeNone
}

// Validate checks Location's standalone invariants.
func (l *Location) Validate() error {
	if l.AccountType != AccountTypeLocation {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", l.AccountType)
	}
	if len(l.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(l.Code))
	}
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "invalid coordinates: (%f, %f)", l.Lat, l.Lng)
	}
	return nil
}

// Validate checks Exchange's standalone invariants.
func (e *Exchange) Validate() error {
	if e.AccountType != AccountTypeExchange {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", e.AccountType)
	}
	if len(e.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(e.Code))
	}
	if e.Lat < -90 || e.Lat > 90 || e.Lng < -180 || e.Lng > 180 {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "invalid coordinates: (%f, %f)", e.Lat, e.Lng)
	}
	return nil
}

// Validate checks Link's standalone invariants: account type, code
// length, and distinct non-zero side references. The endpoint-interface
// constraints are checked by the link processor (which has both Device
// records in hand), not here; neither place checks the side devices'
// status.
func (l *Link) Validate() error {
	if l.AccountType != AccountTypeLink {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", l.AccountType)
	}
	if len(l.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(l.Code))
	}
	if l.SideAPubKey == zeroPubkey || l.SideZPubKey == zeroPubkey {
		return doublezeroerr.New(doublezeroerr.InvalidLink, "link sides must both be set")
	}
	if l.SideAPubKey == l.SideZPubKey {
		return doublezeroerr.New(doublezeroerr.InvalidLink, "link sides must be distinct devices")
	}
	return nil
}

// Validate checks User's standalone invariants.
func (u *User) Validate() error {
	if u.AccountType != AccountTypeUser {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", u.AccountType)
	}
	if !isGlobal(u.ClientIP) {
		return doublezeroerr.New(doublezeroerr.InvalidClientIP, "invalid client ip: %v", net.IP(u.ClientIP[:]))
	}
	if u.DevicePubKey == zeroPubkey {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "user must reference a device")
	}
	if u.UserType == UserTypeMulticast && len(u.Publishers) == 0 && len(u.Subscribers) == 0 {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "multicast user must publish or subscribe to at least one group")
	}
	return nil
}

// Validate checks Contributor's standalone invariants.
func (c *Contributor) Validate() error {
	if c.AccountType != AccountTypeContributor {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", c.AccountType)
	}
	if len(c.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(c.Code))
	}
	return nil
}

// Validate checks MulticastGroup's standalone invariants.
func (m *MulticastGroup) Validate() error {
	if m.AccountType != AccountTypeMulticastGroup {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", m.AccountType)
	}
	if len(m.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(m.Code))
	}
	return nil
}

// Validate checks Tenant's standalone invariants.
func (t *Tenant) Validate() error {
	if t.AccountType != AccountTypeTenant {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", t.AccountType)
	}
	if len(t.Code) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "code too long: %d bytes", len(t.Code))
	}
	return nil
}

// Validate checks AccessPass's standalone invariants.
func (a *AccessPass) Validate() error {
	if a.AccountType != AccountTypeAccessPass {
		return doublezeroerr.New(doublezeroerr.InvalidAccountType, "invalid account type: %v", a.AccountType)
	}
	if len(a.OthersTypeName) > MaxCodeLength {
		return doublezeroerr.New(doublezeroerr.CodeTooLong, "others_type_name too long: %d bytes", len(a.OthersTypeName))
	}
	return nil
}
