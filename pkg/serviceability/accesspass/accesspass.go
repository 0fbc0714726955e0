// Package accesspass implements the CreateUser-time authorization gate:
// resolving a client's access pass, checking its epoch validity, and
// enforcing its tenant and multicast allow-lists.
package accesspass

import (
	"github.com/dz-core/serviceability/doublezeroerr"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

// Resolver looks up the AccessPass for a (client IP, payer) pair. Implemented against
// pkg/serviceability.Store in production and faked in tests.
type Resolver func(clientIP [4]byte, payer [32]byte) (*serviceability.AccessPass, bool)

// Resolve implements the lookup order from the access pass evaluator:
// the specific (client_ip, payer) PDA first, then the wildcard
// (0.0.0.0, payer) PDA, else AccessPassExpired (there is no dedicated
// "not found" kind — an absent pass is treated identically to an
// unreachable epoch).
func Resolve(lookup Resolver, clientIP [4]byte, payer [32]byte) (*serviceability.AccessPass, error) {
	if ap, ok := lookup(clientIP, payer); ok {
		return ap, nil
	}
	if ap, ok := lookup([4]byte{}, payer); ok {
		return ap, nil
	}
	return nil, doublezeroerr.Sentinel(doublezeroerr.AccessPassExpired)
}

// CheckEpoch enforces current_epoch <= last_access_epoch.
func CheckEpoch(ap *serviceability.AccessPass, currentEpoch uint64) error {
	if currentEpoch > ap.LastAccessEpoch {
		return doublezeroerr.Sentinel(doublezeroerr.AccessPassExpired)
	}
	return nil
}

// CheckTenantAllowlist enforces rule (b) of the evaluator: a nil/empty
// tenant means the user did not request tenant scoping and is always
// permitted; otherwise tenant must appear in accesspass.tenant_allowlist,
// where an empty allowlist means no tenant is permitted at all.
func CheckTenantAllowlist(ap *serviceability.AccessPass, tenantAllowlist [][32]byte, tenant *[32]byte) error {
	if tenant == nil {
		return nil
	}
	for _, allowed := range tenantAllowlist {
		if allowed == *tenant {
			return nil
		}
	}
	return doublezeroerr.Sentinel(doublezeroerr.TenantNotInAccessPassAllowlist)
}

// CheckMulticastAllowlist enforces rule (c): a multicast publish or
// subscribe request must name a group present in the matching allowlist.
func CheckMulticastAllowlist(allowlist [][32]byte, group [32]byte) bool {
	for _, g := range allowlist {
		if g == group {
			return true
		}
	}
	return false
}

// Authorize runs the full CreateUser-time gate: resolve, epoch check,
// tenant allow-list check. Multicast allow-list checks are applied
// separately by the multicast-specific caller via CheckMulticastAllowlist
// since they depend on which group(s) the user is requesting, not on the
// access pass alone.
func Authorize(lookup Resolver, clientIP [4]byte, payer [32]byte, currentEpoch uint64, tenant *[32]byte) (*serviceability.AccessPass, error) {
	ap, err := Resolve(lookup, clientIP, payer)
	if err != nil {
		return nil, err
	}
	if err := CheckEpoch(ap, currentEpoch); err != nil {
		return nil, err
	}
	if err := CheckTenantAllowlist(ap, ap.TenantAllowlist, tenant); err != nil {
		return nil, err
	}
	return ap, nil
}
