package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dz-core/serviceability/config"
	"github.com/dz-core/serviceability/pkg/facade"
)

type ConfigCmd struct{}

func NewConfigCmd() *ConfigCmd { return &ConfigCmd{} }

func (c *ConfigCmd) Command() *cobra.Command {
	var network, ledgerRPCURL, programID string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Point the local provisioning daemon at a ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
			log := newLogger(verbose)

			if network != "" {
				netCfg, err := config.NetworkConfigForEnv(network)
				if err != nil {
					return fmt.Errorf("resolve network: %w", err)
				}
				if ledgerRPCURL == "" {
					ledgerRPCURL = netCfg.LedgerPublicRPCURL
				}
				if programID == "" {
					programID = netCfg.ServiceabilityProgramID.String()
				}
			}
			if ledgerRPCURL == "" {
				return fmt.Errorf("one of --network or --ledger-rpc-url is required")
			}
			if programID == "" {
				return fmt.Errorf("one of --network or --serviceability-program-id is required")
			}

			sock, err := resolveSocket(cmd)
			if err != nil {
				return err
			}
			log.Debug("putting daemon config", "socket", sock, "ledgerRPCURL", ledgerRPCURL)

			client := newUnixDaemonClient(sock)
			resp, err := client.PutConfig(facade.ConfigRequest{
				LedgerRPCURL:            ledgerRPCURL,
				ServiceabilityProgramID: programID,
			})
			if err != nil {
				return fmt.Errorf("put config: %w", err)
			}
			fmt.Println(resp.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&network, "network", "", "network shortcut (mainnet-beta, testnet, devnet); fills in --ledger-rpc-url and --serviceability-program-id when set")
	cmd.Flags().StringVar(&ledgerRPCURL, "ledger-rpc-url", "", "the url of the ledger rpc")
	cmd.Flags().StringVar(&programID, "serviceability-program-id", "", "the id of the serviceability program")

	return cmd
}
