package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/pumpsniper/internal/domain"
)

// rpcServer answers JSON-RPC calls by method name, echoing the request id.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		if !assert.True(t, ok, "unexpected method %s", req.Method) {
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
}

func newTestClient(t *testing.T, url string) (*SolanaClient, solana.PrivateKey) {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	c, err := NewSolanaClient(url, key.String())
	require.NoError(t, err)

	return c, key
}

func placeholderTransfer(t *testing.T, payer solana.PublicKey) []byte {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1000, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	require.NoError(t, err)
	// unsigned transactions come back with a zeroed placeholder signature
	tx.Signatures = []solana.Signature{{}}
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return raw
}

func TestNewSolanaClient_InvalidKey(t *testing.T) {
	_, err := NewSolanaClient("http://localhost", "not-a-key")
	require.Error(t, err)
}

func TestSolanaClient_Sign(t *testing.T) {
	c, key := newTestClient(t, "http://localhost")
	require.Equal(t, key.PublicKey().String(), c.PublicKey())

	signed, err := c.Sign(placeholderTransfer(t, key.PublicKey()))
	require.NoError(t, err)

	tx, err := solana.TransactionFromBytes(signed)
	require.NoError(t, err)
	require.Len(t, tx.Signatures, 1)
	require.NoError(t, tx.VerifySignatures())
}

func TestSolanaClient_SignForeignPayer(t *testing.T) {
	c, _ := newTestClient(t, "http://localhost")

	_, err := c.Sign(placeholderTransfer(t, solana.NewWallet().PublicKey()))
	require.Error(t, err)

	_, err = c.Sign([]byte("garbage"))
	require.Error(t, err)
}

func TestSolanaClient_SignatureStatus(t *testing.T) {
	sig := solana.Signature{1}.String()

	tests := []struct {
		name   string
		result string
		want   domain.TxState
	}{
		{"unknown", `{"context":{"slot":1},"value":[null]}`, domain.TxPending},
		{"processed", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`, domain.TxPending},
		{"confirmed", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`, domain.TxConfirmed},
		{"finalized", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`, domain.TxConfirmed},
		{"failed", `{"context":{"slot":1},"value":[{"slot":1,"confirmations":1,"err":{"InstructionError":[0,{"Custom":6001}]},"confirmationStatus":"confirmed"}]}`, domain.TxFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rpcServer(t, map[string]string{"getSignatureStatuses": tt.result})
			defer srv.Close()

			c, _ := newTestClient(t, srv.URL)
			status, err := c.SignatureStatus(context.Background(), sig)
			require.NoError(t, err)
			require.Equal(t, tt.want, status.State)
			if tt.want == domain.TxFailed {
				require.NotEmpty(t, status.Reason)
			}
		})
	}
}

func TestSolanaClient_BroadcastAndBalance(t *testing.T) {
	sig := solana.Signature{7}.String()
	srv := rpcServer(t, map[string]string{
		"sendTransaction": `"` + sig + `"`,
		"getBalance":      `{"context":{"slot":1},"value":1500000000}`,
	})
	defer srv.Close()

	c, _ := newTestClient(t, srv.URL)

	txID, err := c.Broadcast(context.Background(), []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, sig, txID)

	balance, err := c.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1.5", balance.String())
}
