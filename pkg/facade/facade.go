// Package facade defines the thin boundary types this system exposes to
// its external collaborators: a CLI that builds ledger instructions, a
// local daemon the CLI talks to over a Unix socket, and the telemetry
// sample-bucket authorization check. Per spec.md's own scoping, the CLI
// is "free to be thin glue" — these are interfaces and small structs,
// not full services.
package facade

import (
	"encoding/json"
	"net"
	"time"

	"github.com/dz-core/serviceability/doublezeroerr"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

// LedgerInstructionBuilder is the CLI's view of the ledger: one method per
// command family, each returning the raw instruction bytes (discriminant
// plus borsh-encoded args) ready to wrap in a signed transaction. The CLI
// itself never encodes borsh directly — it calls through here so the wire
// format stays centralized in pkg/serviceability.
type LedgerInstructionBuilder interface {
	CreateLocation(loc *serviceability.Location) ([]byte, error)
	CreateExchange(ex *serviceability.Exchange) ([]byte, error)
	CreateContributor(c *serviceability.Contributor) ([]byte, error)
	CreateDevice(dev *serviceability.Device) ([]byte, error)
	CreateLink(link *serviceability.Link) ([]byte, error)
	CreateUser(user *serviceability.User) ([]byte, error)
	CreateMulticastGroup(mg *serviceability.MulticastGroup) ([]byte, error)
	SetAccessPass(ap *serviceability.AccessPass) ([]byte, error)
	DeleteUser(pubkey [32]byte) ([]byte, error)
	RequestBanUser(pubkey [32]byte) ([]byte, error)
}

// ConfigRequest is the body of PUT /config: the daemon's view of which
// ledger to watch.
type ConfigRequest struct {
	LedgerRPCURL            string `json:"ledger_rpc_url"`
	ServiceabilityProgramID string `json:"serviceability_program_id"`
}

// ProvisionRequest is the body of POST /provision: the tunnel parameters
// the daemon should apply to the local network namespace once the
// corresponding User account activates.
type ProvisionRequest struct {
	TunnelSrc          net.IP   `json:"tunnel_src"`
	TunnelDst          net.IP   `json:"tunnel_dst"`
	TunnelNet          string   `json:"tunnel_net"`
	DoubleZeroIP       net.IP   `json:"doublezero_ip"`
	DoubleZeroPrefixes []string `json:"doublezero_prefixes"`
	BGPLocalASN        uint32   `json:"bgp_local_asn"`
	BGPRemoteASN       uint32   `json:"bgp_remote_asn"`
	UserType           string   `json:"user_type"`
	MulticastPubGroups []string `json:"mcast_pub_groups,omitempty"`
	MulticastSubGroups []string `json:"mcast_sub_groups,omitempty"`
}

// DaemonResponse is the uniform response shape for every daemon endpoint.
type DaemonResponse struct {
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// DaemonClient is the CLI's view of the local provisioning daemon,
// reached over the Unix-domain socket named by DOUBLEZERO_SOCK. Bodies
// are length-prefixed JSON framed as HTTP/1.1 request/response pairs;
// the transport detail lives in the concrete implementation (an
// http.Client dialing the Unix socket), not in this interface.
type DaemonClient interface {
	PutConfig(req ConfigRequest) (DaemonResponse, error)
	Provision(req ProvisionRequest) (DaemonResponse, error)
}

// EnvConfigFile and EnvDaemonSocket name the two environment variables
// the CLI and daemon agree on.
const (
	EnvConfigFile   = "DOUBLEZERO_CONFIG_FILE"
	EnvDaemonSocket = "DOUBLEZERO_SOCK"
)

// EncodeFramed length-prefixes a JSON-encoded body the way the daemon
// wire contract requires: a 4-byte big-endian length followed by the
// JSON bytes.
func EncodeFramed(v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 4+len(body))
	out[0] = byte(len(body) >> 24)
	out[1] = byte(len(body) >> 16)
	out[2] = byte(len(body) >> 8)
	out[3] = byte(len(body))
	copy(out[4:], body)
	return out, nil
}

// DecodeFramed reverses EncodeFramed, unmarshaling the body into v.
func DecodeFramed(data []byte, v any) error {
	if len(data) < 4 {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "framed body shorter than its length prefix")
	}
	n := int(data[0])<<24 | int(data[1])<<16 | int(data[2])<<8 | int(data[3])
	if len(data) < 4+n {
		return doublezeroerr.New(doublezeroerr.InvalidInstructionData, "framed body truncated: want %d bytes, have %d", n, len(data)-4)
	}
	return json.Unmarshal(data[4:4+n], v)
}

// TelemetrySampleBucketKey identifies one epoch's worth of latency
// samples between two devices over one link.
type TelemetrySampleBucketKey struct {
	OriginDevicePK [32]byte
	TargetDevicePK [32]byte
	LinkPK         [32]byte
	Epoch          uint64
}

// AuthorizeTelemetryInit enforces spec.md §4.K's telemetry sample-bucket
// initialization rule: the signer must be the origin device's
// metrics_publisher_pk, and both devices plus the link must be activated —
// soft-drained links are explicitly allowed so telemetry continuity
// survives a drain.
func AuthorizeTelemetryInit(signer [32]byte, origin, target *serviceability.Device, link *serviceability.Link) error {
	if signer != origin.MetricsPublisherPubKey {
		return doublezeroerr.Sentinel(doublezeroerr.UnauthorizedAgent)
	}
	if origin.Status != serviceability.DeviceStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.DeviceNotActivated)
	}
	if target.Status != serviceability.DeviceStatusActivated {
		return doublezeroerr.Sentinel(doublezeroerr.DeviceNotActivated)
	}
	switch link.Status {
	case serviceability.LinkStatusActivated, serviceability.LinkStatusSoftDrained:
	default:
		return doublezeroerr.Sentinel(doublezeroerr.InvalidLink)
	}
	return nil
}

// SampleIntervalValid enforces a positive, bounded sampling interval —
// the one numeric constraint spec.md names for telemetry configuration
// (InvalidSamplingInterval).
func SampleIntervalValid(interval time.Duration) error {
	if interval <= 0 || interval > 24*time.Hour {
		return doublezeroerr.Sentinel(doublezeroerr.InvalidSamplingInterval)
	}
	return nil
}
