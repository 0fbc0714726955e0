package activator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/dz-core/serviceability/internal/borsh"
	"github.com/dz-core/serviceability/pkg/allocator"
	"github.com/dz-core/serviceability/pkg/serviceability"
)

// blockhash fetches are idempotent reads, so a transient RPC hiccup is
// worth a few jittered retries before failing the whole submission.
const blockhashRetryBudget = 10 * time.Second

// TransactionSender is the subset of the solana RPC client the submitter
// needs, matching the shape the teacher SDK's transaction helpers depend
// on (BuildInitializeDzLatencySamplesInstruction and friends).
type TransactionSender interface {
	GetLatestBlockhash(ctx context.Context, commitment solanarpc.CommitmentType) (*solanarpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
}

// RPCSubmitter is the production Submitter: it encodes the four
// activator-driven instructions (ActivateUser, RejectUser,
// CloseAccountUser, BanUser), wraps each in a single-instruction
// transaction signed by the activator authority keypair, and sends it.
// One instruction per transaction keeps failure attribution simple: a
// rejected transaction names exactly which state transition it was.
type RPCSubmitter struct {
	RPC       TransactionSender
	ProgramID solana.PublicKey
	Signer    solana.PrivateKey
}

var _ Submitter = (*RPCSubmitter)(nil)

func networkToBytes(n allocator.Network) [5]byte {
	var out [5]byte
	copy(out[:4], n.IP[:])
	out[4] = n.Bits
	return out
}

func ipToBytes(ip net.IP) [4]byte {
	var out [4]byte
	if v4 := ip.To4(); v4 != nil {
		copy(out[:], v4)
	}
	return out
}

func (s *RPCSubmitter) send(ctx context.Context, data []byte, userPK [32]byte) (string, error) {
	ix := &solana.GenericInstruction{
		ProgID: s.ProgramID,
		AccountValues: []*solana.AccountMeta{
			{PublicKey: solana.PublicKeyFromBytes(userPK[:]), IsSigner: false, IsWritable: true},
			{PublicKey: s.Signer.PublicKey(), IsSigner: true, IsWritable: true},
		},
		DataBytes: data,
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = blockhashRetryBudget

	var recent *solanarpc.GetLatestBlockhashResult
	err := backoff.Retry(func() error {
		var err error
		recent, err = s.RPC.GetLatestBlockhash(ctx, solanarpc.CommitmentFinalized)
		return err
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(s.Signer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.Signer.PublicKey()) {
			return &s.Signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := s.RPC.SendTransactionWithOpts(ctx, tx, solanarpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: solanarpc.CommitmentFinalized,
	})
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (s *RPCSubmitter) ActivateUser(ctx context.Context, args ActivateUserArgs) (string, error) {
	w := borsh.NewWriter()
	w.WriteU8(uint8(serviceability.InstrActivateUser))
	w.WriteU16(args.TunnelID)
	w.WriteNetworkV4(networkToBytes(args.TunnelNet))
	w.WriteIPv4(ipToBytes(args.DzIP))
	w.WriteIPv4(ipToBytes(args.TunnelEndpoint))
	return s.send(ctx, w.Bytes(), args.UserPubkey)
}

func (s *RPCSubmitter) RejectUser(ctx context.Context, userPK [32]byte, reason string) (string, error) {
	w := borsh.NewWriter()
	w.WriteU8(uint8(serviceability.InstrRejectUser))
	w.WriteString(reason)
	return s.send(ctx, w.Bytes(), userPK)
}

func (s *RPCSubmitter) CloseAccountUser(ctx context.Context, userPK [32]byte, useOnchainDeallocation bool) (string, error) {
	w := borsh.NewWriter()
	w.WriteU8(uint8(serviceability.InstrCloseAccountUser))
	w.WriteBool(useOnchainDeallocation)
	return s.send(ctx, w.Bytes(), userPK)
}

func (s *RPCSubmitter) BanUser(ctx context.Context, userPK [32]byte) (string, error) {
	w := borsh.NewWriter()
	w.WriteU8(uint8(serviceability.InstrBanUser))
	return s.send(ctx, w.Bytes(), userPK)
}
