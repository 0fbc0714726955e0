package serviceability

import "github.com/dz-core/serviceability/doublezeroerr"

// InstructionDiscriminant is the leading byte of every instruction's wire
// encoding: `u8 discriminant || borsh(args)`. The set is closed and the
// numbering is never reassigned — grounded on the ledger's own
// instructions.rs enum ordering.
type InstructionDiscriminant uint8

const (
	InstrMigrate InstructionDiscriminant = iota // 0
	InstrInitGlobalState
	InstrSetAuthority
	InstrSetGlobalConfig

	InstrAddFoundationAllowlist // 4
	InstrRemoveFoundationAllowlist
	InstrAddDeviceAllowlist
	InstrRemoveDeviceAllowlist
	InstrAddUserAllowlist
	InstrRemoveUserAllowlist

	InstrCreateLocation // 10
	InstrUpdateLocation
	InstrSuspendLocation
	InstrResumeLocation
	InstrDeleteLocation

	InstrCreateExchange // 15
	InstrUpdateExchange
	InstrSuspendExchange
	InstrResumeExchange
	InstrDeleteExchange

	InstrCreateDevice // 20
	InstrActivateDevice
	InstrRejectDevice
	InstrUpdateDevice
	InstrSuspendDevice
	InstrResumeDevice
	InstrDeleteDevice
	InstrCloseAccountDevice

	InstrCreateLink // 28
	InstrActivateLink
	InstrRejectLink
	InstrUpdateLink
	InstrSuspendLink
	InstrResumeLink
	InstrDeleteLink
	InstrCloseAccountLink

	InstrCreateUser // 36
	InstrActivateUser
	InstrRejectUser
	InstrUpdateUser
	InstrSuspendUser
	InstrResumeUser
	InstrDeleteUser
	InstrCloseAccountUser
	InstrRequestBanUser
	InstrBanUser

	InstrCreateMulticastGroup // 46
	InstrActivateMulticastGroup
	InstrRejectMulticastGroup
	InstrUpdateMulticastGroup
	InstrSuspendMulticastGroup
	InstrReactivateMulticastGroup
	InstrDeleteMulticastGroup
	InstrDeactivateMulticastGroup

	InstrAddMulticastGroupPubAllowlist // 54
	InstrRemoveMulticastGroupPubAllowlist
	InstrAddMulticastGroupSubAllowlist
	InstrRemoveMulticastGroupSubAllowlist

	InstrSubscribeMulticastGroup // 58
	InstrCreateSubscribeUser

	InstrCreateContributor // 60
	InstrUpdateContributor
	InstrSuspendContributor
	InstrResumeContributor
	InstrDeleteContributor

	InstrSetDeviceExchange // 65
	InstrAcceptLink
	InstrSetAccessPass
	InstrSetAirdrop
	InstrCloseAccessPass
	InstrCheckStatusAccessPass
	InstrCheckUserAccessPass

	InstrActivateDeviceInterface // 72
	InstrCreateDeviceInterface
	InstrDeleteDeviceInterface
	InstrRemoveDeviceInterface
	InstrUpdateDeviceInterface
	InstrUnlinkDeviceInterface
	InstrRejectDeviceInterface

	InstrSetMinVersion // 79

	InstrAllocateResource // 80
	InstrCreateResource
	InstrDeallocateResource

	InstrSetDeviceHealth // 83
	InstrSetLinkHealth

	InstrCloseResource // 85

	InstrAddQaAllowlist // 86
	InstrRemoveQaAllowlist

	InstrCreateTenant // 88
	InstrUpdateTenant
	InstrDeleteTenant
	InstrTenantAddAdministrator
	InstrTenantRemoveAdministrator
	InstrUpdatePaymentStatus // 93
)

// NumInstructions is the size of the closed instruction discriminant
// space (0..93 inclusive).
const NumInstructions = int(InstrUpdatePaymentStatus) + 1

// Instruction is a decoded (discriminant, raw-args) pair. This layer only
// validates the discriminant is in range; Args stays raw, and the
// processors in pkg/serviceability/processor take typed parameters
// rather than decoding it.
type Instruction struct {
	Discriminant InstructionDiscriminant
	Args         []byte
}

// DecodeInstruction splits the leading discriminant byte from an
// instruction's wire encoding. An out-of-range or missing discriminant
// byte is InvalidInstructionData.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
	}
	d := data[0]
	if int(d) >= NumInstructions {
		return Instruction{}, doublezeroerr.Sentinel(doublezeroerr.InvalidInstructionData)
	}
	return Instruction{Discriminant: InstructionDiscriminant(d), Args: data[1:]}, nil
}

// passThroughInstructions is the dispatch table for the administrative/
// peripheral variants spec.md scopes out of core engineering depth:
// each is still handled by a validating pass-through processor
// (pkg/serviceability/processor), documented in DESIGN.md, rather than
// silently dropped on the floor once decoded.
var passThroughInstructions = map[InstructionDiscriminant]bool{
	InstrAddFoundationAllowlist:    true,
	InstrRemoveFoundationAllowlist: true,
	InstrAddQaAllowlist:            true,
	InstrRemoveQaAllowlist:         true,
	InstrAllocateResource:          true,
	InstrCreateResource:            true,
	InstrDeallocateResource:        true,
	InstrCloseResource:             true,
	InstrSetDeviceHealth:           true,
	InstrSetLinkHealth:             true,
}

// IsPassThrough reports whether d is handled by a validating pass-through
// processor (minimal authorization/shape checks, no entity-lifecycle
// business logic) rather than a full core-subsystem processor.
func (d InstructionDiscriminant) IsPassThrough() bool { return passThroughInstructions[d] }
