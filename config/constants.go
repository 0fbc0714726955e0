package config

// Published ledger RPC endpoints and serviceability program IDs per
// network, the well-known defaults behind the --network shortcut on
// dzcli and the activator.
const (
	MainnetLedgerPublicRPCURL      = "https://doublezero-mainnet-beta.rpcpool.com/db336024-e7a8-46b1-80e5-352dd77060ab"
	MainnetServiceabilityProgramID = "ser2VaTMAcYTaauMrTSfSrxBaUDq7BLNs2xfUugTAGv"
	MainnetDeviceLocalASN          = 209321
	MainnetSolanaRPC               = "https://api.mainnet-beta.solana.com"

	TestnetLedgerPublicRPCURL      = "https://doublezerolocalnet.rpcpool.com/8a4fd3f4-0977-449f-88c7-63d4b0f10f16"
	TestnetServiceabilityProgramID = "DZtnuQ839pSaDMFG5q1ad2V95G82S5EC4RrB3Ndw2Heb"
	TestnetDeviceLocalASN          = 65342
	TestnetSolanaRPC               = "https://api.testnet.solana.com"

	DevnetLedgerPublicRPCURL      = "https://doublezerolocalnet.rpcpool.com/8a4fd3f4-0977-449f-88c7-63d4b0f10f16"
	DevnetServiceabilityProgramID = "GYhQDKuESrasNZGyhMJhGYFtbzNijYhcrN9poSqCQVah"
	DevnetDeviceLocalASN          = 21682

	LocalnetLedgerPublicRPCURL      = "http://localhost:8899"
	LocalnetServiceabilityProgramID = "7CTniUa88iJKUHTrCkB4TjAoG6TD7AMivhQeuqN2LPtX"
	LocalnetDeviceLocalASN          = 21682
	LocalnetSolanaRPC               = "http://localhost:8899"
)
