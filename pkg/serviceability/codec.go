package serviceability

import (
	"github.com/dz-core/serviceability/internal/borsh"
)

// EncodeDevice and DecodeDevice implement the Device account's wire
// format: Common fields, then each field in declaration order. Interfaces
// and DzPrefixes are length-prefixed sequences per the codec's general
// rule. The trailing health/desired-status/unicast-multicast-count
// fields are read with TryRead* so a record written before those fields
// existed still decodes, with health defaulting to Unknown and counts to
// zero — a forward-compatible decode the same way Interface fields are
// grown.
func EncodeDevice(d *Device) []byte {
	w := borsh.NewWriter()
	encodeCommon(w, &d.Common)
	w.WritePubkey(d.LocationPubKey)
	w.WritePubkey(d.ExchangePubKey)
	w.WriteU8(uint8(d.DeviceType))
	w.WriteIPv4(d.PublicIP)
	w.WriteU8(uint8(d.Status))
	w.WriteString(d.Code)
	w.WriteNetworkV4Slice(d.DzPrefixes)
	w.WritePubkey(d.MetricsPublisherPubKey)
	w.WritePubkey(d.ContributorPubKey)
	w.WriteString(d.MgmtVrf)
	w.WriteU32(uint32(len(d.Interfaces)))
	for i := range d.Interfaces {
		encodeInterface(w, &d.Interfaces[i])
	}
	w.WriteU16(d.UsersCount)
	w.WriteU16(d.MaxUsers)
	w.WriteU8(uint8(d.DeviceHealth))
	w.WriteU8(uint8(d.DeviceDesiredStatus))
	w.WriteU16(d.UnicastUsersCount)
	w.WriteU16(d.MulticastUsersCount)
	w.WriteU16(d.MaxUnicastUsers)
	w.WriteU16(d.MaxMulticastUsers)
	return w.Bytes()
}

func DecodeDevice(data []byte) (*Device, error) {
	r := borsh.NewReader(data)
	d := &Device{}
	if err := decodeCommon(r, &d.Common); err != nil {
		return nil, err
	}
	var err error
	if d.LocationPubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	if d.ExchangePubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	typ, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	d.DeviceType = DeviceType(typ)
	if d.PublicIP, err = r.ReadIPv4(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	d.Status = DeviceStatus(status)
	if d.Code, err = r.ReadString(); err != nil {
		return nil, err
	}
	if d.DzPrefixes, err = r.ReadNetworkV4Slice(); err != nil {
		return nil, err
	}
	if d.MetricsPublisherPubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	if d.ContributorPubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	if d.MgmtVrf, err = r.ReadString(); err != nil {
		return nil, err
	}
	n, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	d.Interfaces = make([]Interface, n)
	for i := range d.Interfaces {
		if err := decodeInterface(r, &d.Interfaces[i]); err != nil {
			return nil, err
		}
	}
	if d.UsersCount, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if d.MaxUsers, err = r.ReadU16(); err != nil {
		return nil, err
	}
	d.DeviceHealth = DeviceHealth(r.TryReadU8(uint8(DeviceHealthUnknown)))
	d.DeviceDesiredStatus = DeviceDesiredStatus(r.TryReadU8(uint8(DeviceDesiredStatusPending)))
	d.UnicastUsersCount = r.TryReadU16(0)
	d.MulticastUsersCount = r.TryReadU16(0)
	d.MaxUnicastUsers = r.TryReadU16(0)
	d.MaxMulticastUsers = r.TryReadU16(0)
	return d, nil
}

func encodeInterface(w *borsh.Writer, i *Interface) {
	w.WriteU8(uint8(i.Status))
	w.WriteString(i.Name)
	w.WriteU8(uint8(i.InterfaceType))
	w.WriteU8(uint8(i.LoopbackType))
	w.WriteU64(i.Bandwidth)
	w.WriteU16(i.Mtu)
	w.WriteU16(i.VlanID)
	w.WriteNetworkV4(i.IPNet)
	w.WriteU16(i.NodeSegmentIdx)
	w.WriteBool(i.UserTunnelEndpoint)
}

func decodeInterface(r *borsh.Reader, i *Interface) error {
	status, err := r.ReadU8()
	if err != nil {
		return err
	}
	i.Status = InterfaceStatus(status)
	if i.Name, err = r.ReadString(); err != nil {
		return err
	}
	typ, err := r.ReadU8()
	if err != nil {
		return err
	}
	i.InterfaceType = InterfaceType(typ)
	lb, err := r.ReadU8()
	if err != nil {
		return err
	}
	i.LoopbackType = LoopbackType(lb)
	if i.Bandwidth, err = r.ReadU64(); err != nil {
		return err
	}
	if i.Mtu, err = r.ReadU16(); err != nil {
		return err
	}
	if i.VlanID, err = r.ReadU16(); err != nil {
		return err
	}
	if i.IPNet, err = r.ReadNetworkV4(); err != nil {
		return err
	}
	if i.NodeSegmentIdx, err = r.ReadU16(); err != nil {
		return err
	}
	i.UserTunnelEndpoint = r.TryReadBool(false)
	return nil
}

// EncodeUser and DecodeUser implement the User account's wire format.
func EncodeUser(u *User) []byte {
	w := borsh.NewWriter()
	encodeCommon(w, &u.Common)
	w.WriteU8(uint8(u.UserType))
	w.WritePubkey(u.TenantPubKey)
	w.WritePubkey(u.DevicePubKey)
	w.WriteU8(uint8(u.CyoaType))
	w.WriteIPv4(u.ClientIP)
	w.WriteIPv4(u.DzIP)
	w.WriteU16(u.TunnelID)
	w.WriteNetworkV4(u.TunnelNet)
	w.WriteU8(uint8(u.Status))
	w.WritePubkeySlice(u.Publishers)
	w.WritePubkeySlice(u.Subscribers)
	w.WritePubkey(u.ValidatorPubKey)
	return w.Bytes()
}

func DecodeUser(data []byte) (*User, error) {
	r := borsh.NewReader(data)
	u := &User{}
	if err := decodeCommon(r, &u.Common); err != nil {
		return nil, err
	}
	typ, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.UserType = UserType(typ)
	if u.TenantPubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	if u.DevicePubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	cyoa, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.CyoaType = CyoaType(cyoa)
	if u.ClientIP, err = r.ReadIPv4(); err != nil {
		return nil, err
	}
	if u.DzIP, err = r.ReadIPv4(); err != nil {
		return nil, err
	}
	if u.TunnelID, err = r.ReadU16(); err != nil {
		return nil, err
	}
	if u.TunnelNet, err = r.ReadNetworkV4(); err != nil {
		return nil, err
	}
	status, err := r.ReadU8()
	if err != nil {
		return nil, err
	}
	u.Status = UserStatus(status)
	if u.Publishers, err = r.ReadPubkeySlice(); err != nil {
		return nil, err
	}
	if u.Subscribers, err = r.ReadPubkeySlice(); err != nil {
		return nil, err
	}
	if u.ValidatorPubKey, err = r.ReadPubkey(); err != nil {
		return nil, err
	}
	return u, nil
}

func encodeCommon(w *borsh.Writer, c *Common) {
	w.WriteU8(uint8(c.AccountType))
	w.WritePubkey(c.Owner)
	w.WriteU8(c.BumpSeed)
	w.WriteU64(c.Index)
	w.WriteU32(c.ReferenceCount)
}

func decodeCommon(r *borsh.Reader, c *Common) error {
	typ, err := r.ReadU8()
	if err != nil {
		return err
	}
	c.AccountType = AccountType(typ)
	if c.Owner, err = r.ReadPubkey(); err != nil {
		return err
	}
	if c.BumpSeed, err = r.ReadU8(); err != nil {
		return err
	}
	if c.Index, err = r.ReadU64(); err != nil {
		return err
	}
	if c.ReferenceCount, err = r.ReadU32(); err != nil {
		return err
	}
	return nil
}
