// Package serviceability implements the ledger-side entity model: account
// types, their lifecycle statuses, validation rules, and the binary codec
// used to persist them. It is the in-process analogue of the on-chain
// doublezero-serviceability program.
package serviceability

import "encoding/json"

// AccountType discriminates the account kinds stored under a program
// address. Every persisted record leads with one of these as its first
// byte, mirroring the teacher SDK's decode dispatch in client.go.
type AccountType uint8

const (
	AccountTypeGlobalState       AccountType = 1
	AccountTypeGlobalConfig      AccountType = 2
	AccountTypeLocation          AccountType = 3
	AccountTypeExchange          AccountType = 4
	AccountTypeDevice            AccountType = 5
	AccountTypeLink              AccountType = 6
	AccountTypeUser              AccountType = 7
	AccountTypeMulticastGroup    AccountType = 8
	AccountTypeProgramConfig     AccountType = 9
	AccountTypeContributor       AccountType = 10
	AccountTypeAccessPass        AccountType = 11
	AccountTypeResourceExtension AccountType = 12
	AccountTypeTenant            AccountType = 13
)

// MaxCodeLength bounds every human-assigned entity code (Location,
// Exchange, Contributor, Tenant, MulticastGroup). Exceeding it is
// CodeTooLong.
const MaxCodeLength = 32

// Common is embedded in every entity record and carries the fields every
// account shares: its discriminant, PDA bump, owner, monotonic index, and
// reference count used to gate deletion.
type Common struct {
	AccountType    AccountType
	Owner          [32]byte
	BumpSeed       uint8
	Index          uint64
	ReferenceCount uint32
	PubKey         [32]byte
}

type LocationStatus uint8

const (
	LocationStatusPending LocationStatus = iota
	LocationStatusActivated
	LocationStatusSuspended
)

func (s LocationStatus) String() string {
	return [...]string{"pending", "activated", "suspended"}[clampStatus(uint8(s), 2)]
}

type Location struct {
	Common
	Lat     float64
	Lng     float64
	LocID   uint32
	Status  LocationStatus
	Code    string
	Name    string
	Country string
}

type ExchangeStatus uint8

const (
	ExchangeStatusPending ExchangeStatus = iota
	ExchangeStatusActivated
	ExchangeStatusSuspended
)

func (s ExchangeStatus) String() string {
	return [...]string{"pending", "activated", "suspended"}[clampStatus(uint8(s), 2)]
}

type Exchange struct {
	Common
	Lat          float64
	Lng          float64
	BGPCommunity uint16
	Status       ExchangeStatus
	Code         string
	Name         string
	Device1PK    [32]byte
	Device2PK    [32]byte
}

type DeviceType uint8

const (
	DeviceTypeHybrid DeviceType = iota
	DeviceTypeTransit
	DeviceTypeEdge
)

func (d DeviceType) String() string {
	return [...]string{"hybrid", "transit", "edge"}[clampStatus(uint8(d), 2)]
}

type DeviceStatus uint8

const (
	DeviceStatusPending DeviceStatus = iota
	DeviceStatusActivated
	DeviceStatusDeleting
	DeviceStatusRejected
	DeviceStatusDrained
	DeviceStatusDeviceProvisioning
	DeviceStatusLinkProvisioning
)

func (s DeviceStatus) String() string {
	names := [...]string{"pending", "activated", "deleting", "rejected", "drained", "device-provisioning", "link-provisioning"}
	return names[clampStatus(uint8(s), uint8(len(names)-1))]
}

type DeviceHealth uint8

const (
	DeviceHealthUnknown DeviceHealth = iota
	DeviceHealthPending
	DeviceHealthReadyForLinks
	DeviceHealthReadyForUsers
	DeviceHealthImpaired
)

type DeviceDesiredStatus uint8

const (
	DeviceDesiredStatusPending   DeviceDesiredStatus = 0
	DeviceDesiredStatusActivated DeviceDesiredStatus = 1
	DeviceDesiredStatusDrained   DeviceDesiredStatus = 6
)

type InterfaceStatus uint8

const (
	InterfaceStatusInvalid InterfaceStatus = iota
	InterfaceStatusUnmanaged
	InterfaceStatusPending
	InterfaceStatusActivated
	InterfaceStatusDeleting
	InterfaceStatusRejecting
	InterfaceStatusUnlinked
)

type InterfaceType uint8

const (
	InterfaceTypeInvalid InterfaceType = iota
	InterfaceTypeLoopback
	InterfaceTypePhysical
)

type LoopbackType uint8

const (
	LoopbackTypeNone LoopbackType = iota
	LoopbackTypeVpnv4
	LoopbackTypeIpv4
	LoopbackTypePimRPAddr
	LoopbackTypeReserved
)

// DiaType identifies a direct-internet-access assignment bound to an
// interface, mirroring CyoaType's "none means unassigned" convention.
type DiaType uint8

const (
	DiaTypeNone DiaType = iota
	DiaTypeInternet
)

// Interface is a named port on a Device: physical (edge-assignable, gating
// deletion via InterfaceHasEdgeAssignment) or loopback (used for BGP/PIM
// identities). CyoaType and DiaType record a bound user's choose-your-own-
// adventure/direct-internet-access assignment; either one, like
// UserTunnelEndpoint, constitutes an edge assignment.
type Interface struct {
	Status             InterfaceStatus
	Name               string
	InterfaceType      InterfaceType
	LoopbackType       LoopbackType
	Bandwidth          uint64
	Mtu                uint16
	VlanID             uint16
	IPNet              [5]uint8
	NodeSegmentIdx     uint16
	UserTunnelEndpoint bool
	CyoaType           CyoaType
	DiaType            DiaType
}

// CurrentInterfaceVersion is the interface record layout version; the
// codec neither writes nor checks it.
const CurrentInterfaceVersion = 2

type Device struct {
	Common
	LocationPubKey         [32]byte
	ExchangePubKey         [32]byte
	DeviceType             DeviceType
	PublicIP               [4]uint8
	Status                 DeviceStatus
	Code                   string
	DzPrefixes             [][5]uint8
	MetricsPublisherPubKey [32]byte
	ContributorPubKey      [32]byte
	MgmtVrf                string
	Interfaces             []Interface
	UsersCount             uint16
	MaxUsers               uint16
	DeviceHealth           DeviceHealth
	DeviceDesiredStatus    DeviceDesiredStatus
	UnicastUsersCount      uint16
	MulticastUsersCount    uint16
	MaxUnicastUsers        uint16
	MaxMulticastUsers      uint16
}

type LinkType uint8

const (
	LinkTypeWAN LinkType = 1
	LinkTypeDZX LinkType = 127
)

type LinkStatus uint8

const (
	LinkStatusPending      LinkStatus = 0
	LinkStatusActivated    LinkStatus = 1
	LinkStatusDeleting     LinkStatus = 3
	LinkStatusRejected     LinkStatus = 4
	LinkStatusRequested    LinkStatus = 5
	LinkStatusHardDrained  LinkStatus = 6
	LinkStatusSoftDrained  LinkStatus = 7
	LinkStatusProvisioning LinkStatus = 8
)

func (s LinkStatus) String() string {
	switch s {
	case LinkStatusPending:
		return "pending"
	case LinkStatusActivated:
		return "activated"
	case LinkStatusDeleting:
		return "deleting"
	case LinkStatusRejected:
		return "rejected"
	case LinkStatusRequested:
		return "requested"
	case LinkStatusHardDrained:
		return "hard-drained"
	case LinkStatusSoftDrained:
		return "soft-drained"
	case LinkStatusProvisioning:
		return "provisioning"
	default:
		return "unknown"
	}
}

type LinkHealth uint8

const (
	LinkHealthUnknown LinkHealth = iota
	LinkHealthPending
	LinkHealthReadyForService
	LinkHealthImpaired
)

type LinkDesiredStatus uint8

const (
	LinkDesiredStatusPending     LinkDesiredStatus = 0
	LinkDesiredStatusActivated   LinkDesiredStatus = 1
	LinkDesiredStatusHardDrained LinkDesiredStatus = 6
	LinkDesiredStatusSoftDrained LinkDesiredStatus = 7
)

type Link struct {
	Common
	SideAPubKey       [32]byte
	SideZPubKey       [32]byte
	LinkType          LinkType
	Bandwidth         uint64
	Mtu               uint32
	DelayNs           uint64
	JitterNs          uint64
	TunnelID          uint16
	TunnelNet         [5]uint8
	Status            LinkStatus
	Code              string
	ContributorPubKey [32]byte
	SideAIfaceName    string
	SideZIfaceName    string
	DelayOverrideNs   uint64
	LinkHealth        LinkHealth
	LinkDesiredStatus LinkDesiredStatus
}

type ContributorStatus uint8

const (
	ContributorStatusNone ContributorStatus = iota
	ContributorStatusActivated
	ContributorStatusSuspended
	ContributorStatusDeleting
)

type Contributor struct {
	Common
	Status       ContributorStatus
	Code         string
	OpsManagerPK [32]byte
}

type UserType uint8

const (
	UserTypeIBRL UserType = iota
	UserTypeIBRLWithAllocatedIP
	UserTypeEdgeFiltering
	UserTypeMulticast
)

func (u UserType) String() string {
	switch u {
	case UserTypeIBRL:
		return "ibrl"
	case UserTypeIBRLWithAllocatedIP:
		return "ibrl_with_allocated_ip"
	case UserTypeEdgeFiltering:
		return "edge_filtering"
	case UserTypeMulticast:
		return "multicast"
	default:
		return "unknown"
	}
}

type CyoaType uint8

const (
	CyoaTypeNone CyoaType = iota
	CyoaTypeGREOverDIA
	CyoaTypeGREOverFabric
	CyoaTypeGREOverPrivatePeer
	CyoaTypeGREOverPublicPeer
	CyoaTypeGREOverCable
)

type UserStatus uint8

const (
	UserStatusPending      UserStatus = 0
	UserStatusActivated    UserStatus = 1
	UserStatusDeleting     UserStatus = 3
	UserStatusRejected     UserStatus = 4
	UserStatusPendingBan   UserStatus = 5
	UserStatusBanned       UserStatus = 6
	UserStatusUpdating     UserStatus = 7
	UserStatusOutOfCredits UserStatus = 8
)

func (s UserStatus) String() string {
	switch s {
	case UserStatusPending:
		return "pending"
	case UserStatusActivated:
		return "activated"
	case UserStatusDeleting:
		return "deleting"
	case UserStatusRejected:
		return "rejected"
	case UserStatusPendingBan:
		return "pending_ban"
	case UserStatusBanned:
		return "banned"
	case UserStatusUpdating:
		return "updating"
	case UserStatusOutOfCredits:
		return "out_of_credits"
	default:
		return "unknown"
	}
}

func (s UserStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

type User struct {
	Common
	UserType        UserType
	TenantPubKey    [32]byte
	DevicePubKey    [32]byte
	CyoaType        CyoaType
	ClientIP        [4]uint8
	DzIP            [4]uint8
	TunnelID        uint16
	TunnelNet       [5]uint8
	Status          UserStatus
	Publishers      [][32]byte
	Subscribers     [][32]byte
	ValidatorPubKey [32]byte
}

type MulticastGroupStatus uint8

const (
	MulticastGroupStatusPending MulticastGroupStatus = iota
	MulticastGroupStatusActivated
	MulticastGroupStatusSuspended
	MulticastGroupStatusDeleting
	MulticastGroupStatusRejected
)

type MulticastGroup struct {
	Common
	TenantPubKey    [32]byte
	MulticastIP     [4]uint8
	MaxBandwidth    uint64
	Status          MulticastGroupStatus
	Code            string
	PublisherCount  uint32
	SubscriberCount uint32
}

type AccessPassTypeTag uint8

const (
	AccessPassTypePrepaid AccessPassTypeTag = iota
	AccessPassTypeSolanaValidator
	AccessPassTypeSolanaRPC
	AccessPassTypeSolanaMulticastPub
	AccessPassTypeSolanaMulticastSub
	AccessPassTypeOthers
)

type AccessPassStatus uint8

const (
	AccessPassStatusRequested AccessPassStatus = iota
	AccessPassStatusConnected
	AccessPassStatusDisconnected
	AccessPassStatusExpired
)

// AccessPass gates a (client IP, payer) pair's ability to create a User
// account: it records an epoch-based expiry and, for tenant/multicast
// scoped passes, an allow-list the evaluator consults.
type AccessPass struct {
	AccountType        AccountType
	Owner              [32]byte
	BumpSeed           uint8
	TypeTag            AccessPassTypeTag
	AssociatedPubkey   [32]byte
	OthersTypeName     string
	OthersKey          string
	ClientIP           [4]uint8
	UserPayer          [32]byte
	LastAccessEpoch    uint64
	ConnectionCount    uint16
	Status             AccessPassStatus
	MGroupPubAllowlist [][32]byte
	MGroupSubAllowlist [][32]byte
	TenantAllowlist    [][32]byte
	Flags              uint8
	PubKey             [32]byte
}

type TenantPaymentStatus uint8

const (
	TenantPaymentStatusDelinquent TenantPaymentStatus = iota
	TenantPaymentStatusPaid
)

type Tenant struct {
	AccountType                 AccountType
	Owner                       [32]byte
	BumpSeed                    uint8
	Code                        string
	VrfID                       uint16
	ReferenceCount              uint32
	Administrators              [][32]byte
	PaymentStatus               TenantPaymentStatus
	TokenAccount                [32]byte
	MetroRouting                bool
	RouteLiveness               bool
	BillingRate                 uint64
	BillingLastDeductionDzEpoch uint64
	PubKey                      [32]byte
}

type GlobalState struct {
	AccountType                AccountType
	BumpSeed                   uint8
	AccountIndex               uint64
	FoundationAllowlist        [][32]byte
	ActivatorAuthorityPK       [32]byte
	SentinelAuthorityPK        [32]byte
	ContributorAirdropLamports uint64
	UserAirdropLamports        uint64
	HealthOraclePK             [32]byte
	QAAllowlist                [][32]byte
	PubKey                     [32]byte
}

type GlobalConfig struct {
	AccountType             AccountType
	Owner                   [32]byte
	BumpSeed                uint8
	LocalASN                uint32
	RemoteASN               uint32
	DeviceTunnelBlock       [5]uint8
	UserTunnelBlock         [5]uint8
	MulticastGroupBlock     [5]uint8
	NextBGPCommunity        uint16
	MulticastPublisherBlock [5]uint8
	PubKey                  [32]byte
}

func clampStatus(v, max uint8) uint8 {
	if v > max {
		return max
	}
	return v
}
