package clients

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

const lamportsExp = -9

// SolanaClient holds the wallet key and talks to a Solana RPC node.
// The key is read-only after construction and safe for concurrent use.
type SolanaClient struct {
	rpc    *rpc.Client
	wallet solana.PrivateKey
}

// NewSolanaClient parses a base58 private key and connects to rpcURL.
func NewSolanaClient(rpcURL, privateKey string) (*SolanaClient, error) {
	if rpcURL == "" {
		rpcURL = rpc.MainNetBeta_RPC
	}
	wallet, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return nil, errors.Wrap(err, "invalid wallet private key")
	}

	return &SolanaClient{rpc: rpc.New(rpcURL), wallet: wallet}, nil
}

// PublicKey returns the wallet address.
func (c *SolanaClient) PublicKey() string {
	return c.wallet.PublicKey().String()
}

// Sign replaces any placeholder signatures with the wallet signature.
func (c *SolanaClient) Sign(raw []byte) ([]byte, error) {
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode transaction")
	}

	owner := c.wallet.PublicKey()
	tx.Signatures = nil
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		if pub.Equals(owner) {
			return &c.wallet
		}
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return nil, errors.Wrap(err, "encode transaction")
	}

	return signed, nil
}

// Broadcast sends a signed transaction without preflight and returns its signature.
func (c *SolanaClient) Broadcast(ctx context.Context, signed []byte) (string, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, signed, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return "", err
	}

	return sig.String(), nil
}

// SignatureStatus maps the RPC signature status to a domain status.
// Unknown signatures are reported as pending.
func (c *SolanaClient) SignatureStatus(ctx context.Context, txID string) (domain.TxStatus, error) {
	sig, err := solana.SignatureFromBase58(txID)
	if err != nil {
		return domain.TxStatus{}, errors.Wrapf(err, "invalid signature %s", txID)
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return domain.TxStatus{}, errors.Wrap(err, "get signature statuses")
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return domain.TxStatus{State: domain.TxPending}, nil
	}

	status := out.Value[0]
	if status.Err != nil {
		return domain.TxStatus{State: domain.TxFailed, Reason: fmt.Sprint(status.Err)}, nil
	}
	if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
		status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
		return domain.TxStatus{State: domain.TxConfirmed}, nil
	}

	return domain.TxStatus{State: domain.TxPending}, nil
}

// Balance returns the wallet balance in SOL.
func (c *SolanaClient) Balance(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.rpc.GetBalance(ctx, c.wallet.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get balance")
	}

	return decimal.NewFromInt(int64(out.Value)).Shift(lamportsExp), nil
}
