package cli

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/dz-core/serviceability/pkg/facade"
)

type ProvisionCmd struct{}

func NewProvisionCmd() *ProvisionCmd { return &ProvisionCmd{} }

func (c *ProvisionCmd) Command() *cobra.Command {
	var (
		tunnelSrc, tunnelDst, tunnelNet, dzIP string
		userType                              string
		localASN, remoteASN                   uint32
		pubGroups, subGroups                  []string
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Ask the local daemon to apply tunnel parameters for an activated user",
		RunE: func(cmd *cobra.Command, args []string) error {
			sock, err := resolveSocket(cmd)
			if err != nil {
				return err
			}
			client := newUnixDaemonClient(sock)
			resp, err := client.Provision(facade.ProvisionRequest{
				TunnelSrc:          net.ParseIP(tunnelSrc),
				TunnelDst:          net.ParseIP(tunnelDst),
				TunnelNet:          tunnelNet,
				DoubleZeroIP:       net.ParseIP(dzIP),
				BGPLocalASN:        localASN,
				BGPRemoteASN:       remoteASN,
				UserType:           userType,
				MulticastPubGroups: pubGroups,
				MulticastSubGroups: subGroups,
			})
			if err != nil {
				return fmt.Errorf("provision: %w", err)
			}
			fmt.Println(resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&tunnelSrc, "tunnel-src", "", "local tunnel endpoint address")
	cmd.Flags().StringVar(&tunnelDst, "tunnel-dst", "", "remote device tunnel endpoint address")
	cmd.Flags().StringVar(&tunnelNet, "tunnel-net", "", "tunnel point-to-point network, cidr notation")
	cmd.Flags().StringVar(&dzIP, "doublezero-ip", "", "the assigned dz ip address")
	cmd.Flags().StringVar(&userType, "user-type", "ibrl", "the user type (ibrl, ibrl_with_allocated_ip, edge_filtering, multicast)")
	cmd.Flags().Uint32Var(&localASN, "bgp-local-asn", 0, "local bgp asn")
	cmd.Flags().Uint32Var(&remoteASN, "bgp-remote-asn", 0, "remote bgp asn")
	cmd.Flags().StringSliceVar(&pubGroups, "mcast-pub-groups", nil, "multicast groups to publish to")
	cmd.Flags().StringSliceVar(&subGroups, "mcast-sub-groups", nil, "multicast groups to subscribe to")

	return cmd
}
