// Package processor implements the per-entity instruction handlers that
// mutate a Store: validating preconditions, applying the state
// transition, and adjusting reference counts — the Go analogue of the
// ledger program's instruction processors.
package processor

import (
	"github.com/dz-core/serviceability/doublezeroerr"
	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
	"github.com/dz-core/serviceability/pkg/serviceability/accesspass"
)

// Processor applies instructions against a single Store under its lock,
// matching the ledger's one-critical-section-per-instruction model.
type Processor struct {
	Store *serviceability.Store
}

func New(store *serviceability.Store) *Processor { return &Processor{Store: store} }

var zeroPubkey32 [32]byte

// --- Location ---------------------------------------------------------

func (p *Processor) CreateLocation(pubkey [32]byte, loc *serviceability.Location) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	loc.AccountType = serviceability.AccountTypeLocation
	loc.PubKey = pubkey
	// Location has no dedicated Activate instruction in the dispatch
	// table: it goes live immediately, Suspend/Resume toggling thereafter.
	loc.Status = serviceability.LocationStatusActivated
	if err := loc.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Locations[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	p.Store.Locations[pubkey] = loc
	return nil
}

func (p *Processor) SuspendLocation(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	loc, ok := p.Store.Locations[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLocation)
	}
	if loc.Status != serviceability.LocationStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	loc.Status = serviceability.LocationStatusSuspended
	return nil
}

func (p *Processor) ResumeLocation(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	loc, ok := p.Store.Locations[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLocation)
	}
	if loc.Status != serviceability.LocationStatusSuspended {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	loc.Status = serviceability.LocationStatusActivated
	return nil
}

func (p *Processor) DeleteLocation(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	loc, ok := p.Store.Locations[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLocation)
	}
	if err := serviceability.RequireZeroRefs(&loc.Common); err != nil {
		return err
	}
	delete(p.Store.Locations, pubkey)
	return nil
}

// --- Exchange -----------------------------------------------------------

func (p *Processor) CreateExchange(pubkey [32]byte, ex *serviceability.Exchange) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	ex.AccountType = serviceability.AccountTypeExchange
	ex.PubKey = pubkey
	// Exchange, like Location, has no dedicated Activate instruction.
	ex.Status = serviceability.ExchangeStatusActivated
	if err := ex.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Exchanges[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	p.Store.Exchanges[pubkey] = ex
	return nil
}

func (p *Processor) DeleteExchange(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	ex, ok := p.Store.Exchanges[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidExchange)
	}
	if err := serviceability.RequireZeroRefs(&ex.Common); err != nil {
		return err
	}
	delete(p.Store.Exchanges, pubkey)
	return nil
}

// --- Contributor --------------------------------------------------------

func (p *Processor) CreateContributor(pubkey [32]byte, c *serviceability.Contributor) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	c.AccountType = serviceability.AccountTypeContributor
	c.PubKey = pubkey
	c.Status = serviceability.ContributorStatusActivated
	if err := c.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Contributors[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	p.Store.Contributors[pubkey] = c
	return nil
}

func (p *Processor) DeleteContributor(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	c, ok := p.Store.Contributors[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}
	if err := serviceability.RequireZeroRefs(&c.Common); err != nil {
		return err
	}
	delete(p.Store.Contributors, pubkey)
	return nil
}

// --- Device ---------------------------------------------------------

// CreateDevice requires an activated contributor, location, and exchange,
// and increments each parent's reference count.
func (p *Processor) CreateDevice(pubkey [32]byte, dev *serviceability.Device) error {
	p.Store.Lock()
	defer p.Store.Unlock()

	loc, ok := p.Store.Locations[dev.LocationPubKey]
	if !ok || loc.Status != serviceability.LocationStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLocation)
	}
	ex, ok := p.Store.Exchanges[dev.ExchangePubKey]
	if !ok || ex.Status != serviceability.ExchangeStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidExchange)
	}
	contrib, ok := p.Store.Contributors[dev.ContributorPubKey]
	if !ok || contrib.Status != serviceability.ContributorStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}

	dev.AccountType = serviceability.AccountTypeDevice
	dev.PubKey = pubkey
	dev.Status = serviceability.DeviceStatusPending
	if err := dev.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Devices[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}

	p.Store.Devices[pubkey] = dev
	serviceability.IncRef(&loc.Common)
	serviceability.IncRef(&ex.Common)
	serviceability.IncRef(&contrib.Common)
	return nil
}

// ActivateDevice transitions Pending -> Activated. The caller is
// responsible for allocating the device's tunnel-id and dz-prefix
// resource extensions (pkg/pda.FindTunnelIdsPDA/FindDzPrefixBlockPDA,
// shard 0) before calling this — this matches the ledger's own separation
// between account creation (here) and resource-extension CreateResource
// instructions.
func (p *Processor) ActivateDevice(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	dev, ok := p.Store.Devices[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if dev.Status != serviceability.DeviceStatusPending {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	dev.Status = serviceability.DeviceStatusActivated
	return nil
}

// DeleteDevice requires zero references and status Activated or Drained.
func (p *Processor) DeleteDevice(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	dev, ok := p.Store.Devices[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if dev.Status != serviceability.DeviceStatusActivated && dev.Status != serviceability.DeviceStatusDrained {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	if err := serviceability.RequireZeroRefs(&dev.Common); err != nil {
		return err
	}
	dev.Status = serviceability.DeviceStatusDeleting
	return nil
}

// CloseAccountDevice finalizes deletion from Deleting, decrementing the
// parent location/exchange/contributor reference counts.
func (p *Processor) CloseAccountDevice(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	dev, ok := p.Store.Devices[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if dev.Status != serviceability.DeviceStatusDeleting {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	if loc, ok := p.Store.Locations[dev.LocationPubKey]; ok {
		if err := serviceability.DecRef(&loc.Common); err != nil {
			return err
		}
	}
	if ex, ok := p.Store.Exchanges[dev.ExchangePubKey]; ok {
		if err := serviceability.DecRef(&ex.Common); err != nil {
			return err
		}
	}
	if contrib, ok := p.Store.Contributors[dev.ContributorPubKey]; ok {
		if err := serviceability.DecRef(&contrib.Common); err != nil {
			return err
		}
	}
	delete(p.Store.Devices, pubkey)
	return nil
}

// --- Device interface ---------------------------------------------------

// CreateDeviceInterface appends a new interface to an activated device in
// Pending status, awaiting ActivateDeviceInterface.
func (p *Processor) CreateDeviceInterface(devicePubkey [32]byte, iface serviceability.Interface) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	dev, ok := p.Store.Devices[devicePubkey]
	if !ok || dev.Status != serviceability.DeviceStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.DeviceNotActivated)
	}
	if _, exists := dev.FindInterface(iface.Name); exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	iface.Status = serviceability.InterfaceStatusPending
	if err := iface.Validate(); err != nil {
		return err
	}
	dev.Interfaces = append(dev.Interfaces, iface)
	return nil
}

// ActivateDeviceInterface moves a Pending interface to Unlinked, the
// provisioned-but-unbonded state CreateLink/ActivateLink require before a
// Link can claim it.
func (p *Processor) ActivateDeviceInterface(devicePubkey [32]byte, ifaceName string) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	iface, err := p.findInterfaceLocked(devicePubkey, ifaceName)
	if err != nil {
		return err
	}
	if iface.Status != serviceability.InterfaceStatusPending {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	iface.Status = serviceability.InterfaceStatusUnlinked
	return nil
}

// RejectDeviceInterface moves a Pending interface to Rejecting, mirroring
// RejectUser.
func (p *Processor) RejectDeviceInterface(devicePubkey [32]byte, ifaceName string) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	iface, err := p.findInterfaceLocked(devicePubkey, ifaceName)
	if err != nil {
		return err
	}
	if iface.Status != serviceability.InterfaceStatusPending {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	iface.Status = serviceability.InterfaceStatusRejecting
	return nil
}

// UpdateDeviceInterface sets the CYOA/DIA assignment fields. An interface
// already carrying an edge assignment — bound into an Activated Link, a
// user tunnel endpoint, or a prior CYOA/DIA assignment — cannot be
// reassigned until that assignment is released.
func (p *Processor) UpdateDeviceInterface(devicePubkey [32]byte, ifaceName string, cyoaType serviceability.CyoaType, diaType serviceability.DiaType) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	iface, err := p.findInterfaceLocked(devicePubkey, ifaceName)
	if err != nil {
		return err
	}
	if iface.Status == serviceability.InterfaceStatusActivated || iface.HasEdgeAssignment() {
		return doublezeroerr.Sentinel(doublezeroerr.InterfaceHasEdgeAssignment)
	}
	iface.CyoaType = cyoaType
	iface.DiaType = diaType
	return nil
}

// UnlinkDeviceInterface reverts an Activated interface to Unlinked once
// its owning Link has been deleted — the only path back to the state
// CreateLink/ActivateLink require of a fresh endpoint.
func (p *Processor) UnlinkDeviceInterface(devicePubkey [32]byte, ifaceName string) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	iface, err := p.findInterfaceLocked(devicePubkey, ifaceName)
	if err != nil {
		return err
	}
	if iface.Status != serviceability.InterfaceStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	iface.Status = serviceability.InterfaceStatusUnlinked
	iface.CyoaType = serviceability.CyoaTypeNone
	iface.DiaType = serviceability.DiaTypeNone
	iface.UserTunnelEndpoint = false
	return nil
}

// DeleteDeviceInterface begins removal of an interface carrying no edge
// assignment, the Delete step of a two-phase Delete/Remove lifecycle,
// the same shape Device, Link and User use for Delete/CloseAccount.
func (p *Processor) DeleteDeviceInterface(devicePubkey [32]byte, ifaceName string) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	iface, err := p.findInterfaceLocked(devicePubkey, ifaceName)
	if err != nil {
		return err
	}
	if iface.HasEdgeAssignment() {
		return doublezeroerr.Sentinel(doublezeroerr.InterfaceHasEdgeAssignment)
	}
	switch iface.Status {
	case serviceability.InterfaceStatusUnlinked, serviceability.InterfaceStatusPending, serviceability.InterfaceStatusRejecting:
	default:
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	iface.Status = serviceability.InterfaceStatusDeleting
	return nil
}

// RemoveDeviceInterface finalizes a Deleting interface by removing it
// from the device's interface list, the CloseAccount-equivalent step.
func (p *Processor) RemoveDeviceInterface(devicePubkey [32]byte, ifaceName string) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	dev, ok := p.Store.Devices[devicePubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	for i := range dev.Interfaces {
		if dev.Interfaces[i].Name != ifaceName {
			continue
		}
		if dev.Interfaces[i].Status != serviceability.InterfaceStatusDeleting {
			return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
		}
		dev.Interfaces = append(dev.Interfaces[:i], dev.Interfaces[i+1:]...)
		return nil
	}
	return doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
}

// findInterfaceLocked resolves a device's named interface under the
// caller's already-held Store lock. Callers must lock/defer-unlock before
// calling this.
func (p *Processor) findInterfaceLocked(devicePubkey [32]byte, ifaceName string) (*serviceability.Interface, error) {
	dev, ok := p.Store.Devices[devicePubkey]
	if !ok {
		return nil, doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	iface, ok := dev.FindInterface(ifaceName)
	if !ok {
		return nil, doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
	}
	return iface, nil
}

// --- Link ---------------------------------------------------------

// CreateLink requires both endpoint interfaces to currently be Unlinked,
// with no non-None CYOA/DIA assignment on either — the same constraint
// ActivateLink re-checks, since a concurrent instruction could have
// reassigned an interface between Create and Activate.
func (p *Processor) CreateLink(pubkey [32]byte, link *serviceability.Link) error {
	p.Store.Lock()
	defer p.Store.Unlock()

	sideA, ok := p.Store.Devices[link.SideAPubKey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	sideZ, ok := p.Store.Devices[link.SideZPubKey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	if err := requireUnlinkedEndpoint(sideA, link.SideAIfaceName); err != nil {
		return err
	}
	if err := requireUnlinkedEndpoint(sideZ, link.SideZIfaceName); err != nil {
		return err
	}

	link.AccountType = serviceability.AccountTypeLink
	link.PubKey = pubkey
	link.Status = serviceability.LinkStatusPending
	if err := link.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Links[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}

	p.Store.Links[pubkey] = link
	serviceability.IncRef(&sideA.Common)
	serviceability.IncRef(&sideZ.Common)
	return nil
}

func requireUnlinkedEndpoint(dev *serviceability.Device, ifaceName string) error {
	iface, ok := dev.FindInterface(ifaceName)
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	if iface.Status != serviceability.InterfaceStatusUnlinked {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	if iface.HasEdgeAssignment() {
		return doublezeroerr.Sentinel(doublezeroerr.InterfaceHasEdgeAssignment)
	}
	return nil
}

// ActivateLink re-validates the endpoint constraint, assigns a tunnel ID
// and tunnel net (either on-chain-allocated from the supplied allocators,
// or the caller-supplied values when useOnchainAllocation is false), and
// marks both endpoint interfaces Activated.
func (p *Processor) ActivateLink(pubkey [32]byte, linkIDs *allocator.IDAllocator, deviceTunnelBlock *allocator.IPBlockAllocator, useOnchainAllocation bool, tunnelID uint16, tunnelNet allocator.Network) error {
	p.Store.Lock()
	defer p.Store.Unlock()

	link, ok := p.Store.Links[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	if link.Status != serviceability.LinkStatusPending && link.Status != serviceability.LinkStatusRequested {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}

	sideA := p.Store.Devices[link.SideAPubKey]
	sideZ := p.Store.Devices[link.SideZPubKey]
	if err := requireUnlinkedEndpoint(sideA, link.SideAIfaceName); err != nil {
		return err
	}
	if err := requireUnlinkedEndpoint(sideZ, link.SideZIfaceName); err != nil {
		return err
	}

	if useOnchainAllocation {
		id, ok := linkIDs.Allocate()
		if !ok {
			return doublezeroerr.Sentinel(doublezeroerr.AllocatorExhausted)
		}
		net, ok := deviceTunnelBlock.NextAvailableBlock(0, 2)
		if !ok {
			return doublezeroerr.Sentinel(doublezeroerr.AllocatorExhausted)
		}
		link.TunnelID = uint16(id)
		link.TunnelNet = to5(net)
	} else {
		link.TunnelID = tunnelID
		link.TunnelNet = to5(tunnelNet)
	}

	link.Status = serviceability.LinkStatusActivated
	markActivated(sideA, link.SideAIfaceName)
	markActivated(sideZ, link.SideZIfaceName)
	return nil
}

func markActivated(dev *serviceability.Device, ifaceName string) {
	if iface, ok := dev.FindInterface(ifaceName); ok {
		iface.Status = serviceability.InterfaceStatusActivated
	}
}

func to5(n allocator.Network) [5]uint8 {
	var b [5]uint8
	copy(b[:4], n.IP[:])
	b[4] = n.Bits
	return b
}

// DeleteLink is permitted only from Pending, SoftDrained, or HardDrained.
func (p *Processor) DeleteLink(pubkey [32]byte, linkIDs *allocator.IDAllocator, deviceTunnelBlock *allocator.IPBlockAllocator, useOnchainDeallocation bool) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	link, ok := p.Store.Links[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	switch link.Status {
	case serviceability.LinkStatusPending, serviceability.LinkStatusSoftDrained, serviceability.LinkStatusHardDrained:
	default:
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	if !useOnchainDeallocation && link.TunnelID != 0 {
		linkIDs.Free(uint32(link.TunnelID))
		var n allocator.Network
		copy(n.IP[:], link.TunnelNet[:4])
		n.Bits = link.TunnelNet[4]
		deviceTunnelBlock.UnassignBlock(n)
	}
	link.Status = serviceability.LinkStatusDeleting
	return nil
}

func (p *Processor) CloseAccountLink(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	link, ok := p.Store.Links[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	if link.Status != serviceability.LinkStatusDeleting {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	if sideA, ok := p.Store.Devices[link.SideAPubKey]; ok {
		if err := serviceability.DecRef(&sideA.Common); err != nil {
			return err
		}
	}
	if sideZ, ok := p.Store.Devices[link.SideZPubKey]; ok {
		if err := serviceability.DecRef(&sideZ.Common); err != nil {
			return err
		}
	}
	delete(p.Store.Links, pubkey)
	return nil
}

// --- User ---------------------------------------------------------

// CreateUser records a Pending user, bumping the device's users_count
// (and its per-type unicast/multicast counter) against MaxUsers /
// MaxUnicastUsers / MaxMulticastUsers. Admission is gated by the caller's
// access pass: resolved by (client_ip, payer) with a wildcard fallback,
// rejected past last_access_epoch, and checked against the pass's
// tenant_allowlist when the user requests a tenant.
func (p *Processor) CreateUser(pubkey [32]byte, user *serviceability.User, payer [32]byte, currentEpoch uint64) error {
	p.Store.Lock()
	defer p.Store.Unlock()

	var tenant *[32]byte
	if user.TenantPubKey != zeroPubkey32 {
		tenant = &user.TenantPubKey
	}
	ap, err := accesspass.Authorize(p.accessPassResolver(), user.ClientIP, payer, currentEpoch, tenant)
	if err != nil {
		return err
	}

	dev, ok := p.Store.Devices[user.DevicePubKey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.DeviceNotActivated)
	}
	if dev.MaxUsers > 0 && dev.UsersCount >= dev.MaxUsers {
		return doublezeroerr.Sentinel(doublezeroerr.MaxUsersExceeded)
	}
	if !dev.IsEligibleForProvisioning() {
		return doublezeroerr.Sentinel(doublezeroerr.DeviceNotActivated)
	}
	if user.UserType == serviceability.UserTypeMulticast {
		if dev.MaxMulticastUsers != 0 && dev.MulticastUsersCount >= dev.MaxMulticastUsers {
			return doublezeroerr.Sentinel(doublezeroerr.MaxMulticastUsersExceeded)
		}
	} else if dev.MaxUnicastUsers != 0 && dev.UnicastUsersCount >= dev.MaxUnicastUsers {
		return doublezeroerr.Sentinel(doublezeroerr.MaxUnicastUsersExceeded)
	}

	user.AccountType = serviceability.AccountTypeUser
	user.PubKey = pubkey
	user.Status = serviceability.UserStatusPending
	if err := user.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Users[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}

	p.Store.Users[pubkey] = user
	dev.UsersCount++
	if user.UserType == serviceability.UserTypeMulticast {
		dev.MulticastUsersCount++
	} else {
		dev.UnicastUsersCount++
	}
	serviceability.IncRef(&dev.Common)
	ap.ConnectionCount++
	return nil
}

// accessPassResolver scans the store for an AccessPass keyed by the exact
// (client_ip, payer) pair accesspass.Resolve requests: the specific IP
// first, the wildcard 0.0.0.0 IP on fallback. AccessPasses are stored by
// PDA, not by this pair, so resolution is a linear scan rather than a map
// lookup.
func (p *Processor) accessPassResolver() accesspass.Resolver {
	return func(ip [4]byte, payer [32]byte) (*serviceability.AccessPass, bool) {
		for _, ap := range p.Store.AccessPasses {
			if ap.ClientIP == ip && ap.UserPayer == payer {
				return ap, true
			}
		}
		return nil, false
	}
}

// ActivateUser moves Pending/Updating -> Activated, persisting the
// placement the activator resolved. Guarding against InvalidStatus when
// the account has already moved on is the activator's concern, not this
// processor's — this processor simply rejects anything not in
// {Pending, Updating}.
func (p *Processor) ActivateUser(pubkey [32]byte, tunnelID uint16, tunnelNet [5]uint8, dzIP [4]uint8, tunnelEndpoint [4]uint8) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusPending && user.Status != serviceability.UserStatusUpdating {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.TunnelID = tunnelID
	user.TunnelNet = tunnelNet
	user.DzIP = dzIP
	user.Status = serviceability.UserStatusActivated
	return nil
}

func (p *Processor) RejectUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusPending {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.Status = serviceability.UserStatusRejected
	return nil
}

func (p *Processor) UpdateUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.Status = serviceability.UserStatusUpdating
	return nil
}

func (p *Processor) DeleteUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	switch user.Status {
	case serviceability.UserStatusActivated, serviceability.UserStatusUpdating, serviceability.UserStatusPending:
	default:
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.Status = serviceability.UserStatusDeleting
	return nil
}

// CloseAccountUser finalizes deletion, decrements the owning device's
// reference count and per-type user counters.
func (p *Processor) CloseAccountUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusDeleting {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	if dev, ok := p.Store.Devices[user.DevicePubKey]; ok {
		if err := serviceability.DecRef(&dev.Common); err != nil {
			return err
		}
		dev.UsersCount--
		if user.UserType == serviceability.UserTypeMulticast {
			dev.MulticastUsersCount--
		} else {
			dev.UnicastUsersCount--
		}
	}
	delete(p.Store.Users, pubkey)
	return nil
}

func (p *Processor) RequestBanUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.Status = serviceability.UserStatusPendingBan
	return nil
}

// BanUser requires the two-step flow: only PendingBan may transition to
// Banned — an attempt from Activated (skipping RequestBanUser) is
// InvalidStatus.
func (p *Processor) BanUser(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	user, ok := p.Store.Users[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if user.Status != serviceability.UserStatusPendingBan {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	user.Status = serviceability.UserStatusBanned
	return nil
}

// --- MulticastGroup ---------------------------------------------------

func (p *Processor) CreateMulticastGroup(pubkey [32]byte, mg *serviceability.MulticastGroup) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	mg.AccountType = serviceability.AccountTypeMulticastGroup
	mg.PubKey = pubkey
	mg.Status = serviceability.MulticastGroupStatusPending
	if err := mg.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.MGroups[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	p.Store.MGroups[pubkey] = mg
	return nil
}

// ActivateMulticastGroup records multicast_ip drawn from the multicast
// group block and transitions Pending -> Activated.
func (p *Processor) ActivateMulticastGroup(pubkey [32]byte, groupBlock *allocator.IPBlockAllocator) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	mg, ok := p.Store.MGroups[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if mg.Status != serviceability.MulticastGroupStatusPending {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	n, ok := groupBlock.NextAvailableBlock(1, 1)
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.AllocatorExhausted)
	}
	mg.MulticastIP = n.IP
	mg.Status = serviceability.MulticastGroupStatusActivated
	return nil
}

func (p *Processor) DeactivateMulticastGroup(pubkey [32]byte, groupBlock *allocator.IPBlockAllocator) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	mg, ok := p.Store.MGroups[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	if mg.Status != serviceability.MulticastGroupStatusActivated && mg.Status != serviceability.MulticastGroupStatusSuspended {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidStatus)
	}
	groupBlock.UnassignBlock(allocator.Network{IP: mg.MulticastIP, Bits: 32})
	mg.Status = serviceability.MulticastGroupStatusDeleting
	return nil
}

// --- AccessPass ---------------------------------------------------------

func (p *Processor) SetAccessPass(pubkey [32]byte, ap *serviceability.AccessPass) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	ap.AccountType = serviceability.AccountTypeAccessPass
	ap.PubKey = pubkey
	if err := ap.Validate(); err != nil {
		return err
	}
	if existing, ok := p.Store.AccessPasses[pubkey]; ok {
		existing.LastAccessEpoch = ap.LastAccessEpoch
		existing.MGroupPubAllowlist = ap.MGroupPubAllowlist
		existing.MGroupSubAllowlist = ap.MGroupSubAllowlist
		existing.TenantAllowlist = ap.TenantAllowlist
		existing.Flags = ap.Flags
		return nil
	}
	ap.Status = serviceability.AccessPassStatusRequested
	p.Store.AccessPasses[pubkey] = ap
	return nil
}

// CheckStatusAccessPass transitions Requested -> Connected while within
// the access pass's epoch, or -> Expired past it.
func (p *Processor) CheckStatusAccessPass(pubkey [32]byte, currentEpoch uint64) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	ap, ok := p.Store.AccessPasses[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.AccessPassExpired)
	}
	if currentEpoch > ap.LastAccessEpoch {
		ap.Status = serviceability.AccessPassStatusExpired
		return nil
	}
	if ap.Status == serviceability.AccessPassStatusRequested {
		ap.Status = serviceability.AccessPassStatusConnected
	}
	return nil
}

// --- Tenant ---------------------------------------------------------

func (p *Processor) CreateTenant(pubkey [32]byte, t *serviceability.Tenant) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	t.AccountType = serviceability.AccountTypeTenant
	t.PubKey = pubkey
	if err := t.Validate(); err != nil {
		return err
	}
	if _, exists := p.Store.Tenants[pubkey]; exists {
		return doublezeroerr.Sentinel(doublezeroerr.AccountAlreadyExists)
	}
	p.Store.Tenants[pubkey] = t
	return nil
}

func (p *Processor) DeleteTenant(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	t, ok := p.Store.Tenants[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}
	if t.ReferenceCount != 0 {
		return doublezeroerr.Sentinel(doublezeroerr.ReferenceCountNotZero)
	}
	delete(p.Store.Tenants, pubkey)
	return nil
}

func (p *Processor) TenantAddAdministrator(pubkey [32]byte, admin [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	t, ok := p.Store.Tenants[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}
	for _, a := range t.Administrators {
		if a == admin {
			return nil
		}
	}
	t.Administrators = append(t.Administrators, admin)
	return nil
}

func (p *Processor) TenantRemoveAdministrator(pubkey [32]byte, admin [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	t, ok := p.Store.Tenants[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}
	for i, a := range t.Administrators {
		if a == admin {
			t.Administrators = append(t.Administrators[:i], t.Administrators[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *Processor) UpdatePaymentStatus(pubkey [32]byte, status serviceability.TenantPaymentStatus) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	t, ok := p.Store.Tenants[pubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.NotAuthorized)
	}
	t.PaymentStatus = status
	return nil
}

// --- Foundation/QA allowlist administration (pass-through) ---------------
//
// These four are peripheral administrative variants per spec.md §3.E: a
// validating pass-through against GlobalState's two allow-lists, not a
// core-subsystem lifecycle.

func (p *Processor) AddFoundationAllowlist(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	for _, a := range p.Store.GlobalState.FoundationAllowlist {
		if a == pubkey {
			return nil
		}
	}
	p.Store.GlobalState.FoundationAllowlist = append(p.Store.GlobalState.FoundationAllowlist, pubkey)
	return nil
}

func (p *Processor) RemoveFoundationAllowlist(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	list := p.Store.GlobalState.FoundationAllowlist
	for i, a := range list {
		if a == pubkey {
			p.Store.GlobalState.FoundationAllowlist = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (p *Processor) AddQaAllowlist(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	for _, a := range p.Store.GlobalState.QAAllowlist {
		if a == pubkey {
			return nil
		}
	}
	p.Store.GlobalState.QAAllowlist = append(p.Store.GlobalState.QAAllowlist, pubkey)
	return nil
}

func (p *Processor) RemoveQaAllowlist(pubkey [32]byte) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	list := p.Store.GlobalState.QAAllowlist
	for i, a := range list {
		if a == pubkey {
			p.Store.GlobalState.QAAllowlist = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// --- Health oracle gate ---------------------------------------------------

// SetDeviceHealth is the single code path the device-health-oracle is
// meant to drive (spec.md §9 design note): only the configured
// HealthOraclePK may call it, and it records the reported health
// unconditionally — health values don't gate any other transition in this
// repo, exactly as the design note scopes it.
func (p *Processor) SetDeviceHealth(devicePubkey [32]byte, oracle [32]byte, health serviceability.DeviceHealth) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil || oracle != p.Store.GlobalState.HealthOraclePK {
		return doublezeroerr.Sentinel(doublezeroerr.UnauthorizedAgent)
	}
	dev, ok := p.Store.Devices[devicePubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidAccountType)
	}
	dev.DeviceHealth = health
	return nil
}

func (p *Processor) SetLinkHealth(linkPubkey [32]byte, oracle [32]byte, health serviceability.LinkHealth) error {
	p.Store.Lock()
	defer p.Store.Unlock()
	if p.Store.GlobalState == nil || oracle != p.Store.GlobalState.HealthOraclePK {
		return doublezeroerr.Sentinel(doublezeroerr.UnauthorizedAgent)
	}
	link, ok := p.Store.Links[linkPubkey]
	if !ok {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	link.LinkHealth = health
	return nil
}

// --- Resource extension lifecycle (pass-through over pkg/allocator) ------
//
// AllocateResource/DeallocateResource wrap the allocator primitives of
// pkg/allocator directly — the explicit-instruction counterpart to the
// allocate-on-activate calls ActivateLink/ActivateMulticastGroup already
// make inline. CreateResource/CloseResource validate the resource-extension
// account's owner and are otherwise no-ops: this in-memory ledger has no
// on-chain rent to collect or refund.

func (p *Processor) AllocateResource(ids *allocator.IDAllocator) (uint32, error) {
	id, ok := ids.Allocate()
	if !ok {
		return 0, doublezeroerr.Sentinel(doublezeroerr.AllocatorExhausted)
	}
	return id, nil
}

func (p *Processor) DeallocateResource(ids *allocator.IDAllocator, id uint32) error {
	ids.Free(id)
	return nil
}

func (p *Processor) CreateResource(ownerPubkey [32]byte) error {
	if ownerPubkey == zeroPubkey32 {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
	}
	return nil
}

func (p *Processor) CloseResource(ownerPubkey [32]byte) error {
	if ownerPubkey == zeroPubkey32 {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
	}
	return nil
}
