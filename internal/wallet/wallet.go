// Package wallet reports on-chain balances for the trading account and
// handles private-key storage.
package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/arbscan/internal/domain"
)

// balanceOfSelector is the first four bytes of keccak256("balanceOf(address)").
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

const (
	usdcDecimals   = 1e6
	nativeDecimals = 1e18
)

// chainBackend is the subset of ethclient.Client the wallet needs.
type chainBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Wallet implements domain.AccountSource against a Polygon JSON-RPC node.
// QuoteCurrency is the USDC ERC-20 balance; GasCurrency is the native token.
type Wallet struct {
	backend chainBackend
	address common.Address
	usdc    common.Address
	logger  *slog.Logger
	close   func()
}

// New creates a Wallet over an existing chain backend.
func New(backend chainBackend, address, usdc common.Address, logger *slog.Logger) *Wallet {
	return &Wallet{
		backend: backend,
		address: address,
		usdc:    usdc,
		logger:  logger.With(slog.String("component", "wallet")),
	}
}

// Dial connects to the JSON-RPC endpoint and returns a Wallet for the given
// account and USDC contract.
func Dial(ctx context.Context, rpcURL string, address, usdc common.Address, logger *slog.Logger) (*Wallet, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial %s: %w", rpcURL, err)
	}
	w := New(client, address, usdc, logger)
	w.close = client.Close
	return w, nil
}

// Close releases the RPC connection when the wallet was built with Dial.
func (w *Wallet) Close() {
	if w.close != nil {
		w.close()
	}
}

// Balance returns the current USDC and native-token balances.
func (w *Wallet) Balance(ctx context.Context) (domain.Balance, error) {
	wei, err := w.backend.BalanceAt(ctx, w.address, nil)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("wallet: native balance: %w", err)
	}

	usdcRaw, err := w.usdcBalance(ctx)
	if err != nil {
		return domain.Balance{}, err
	}

	balance := domain.Balance{
		QuoteCurrency: scaleDown(usdcRaw, usdcDecimals),
		GasCurrency:   scaleDown(wei, nativeDecimals),
	}
	w.logger.Debug("balance fetched",
		slog.Float64("usdc", balance.QuoteCurrency),
		slog.Float64("native", balance.GasCurrency))
	return balance, nil
}

// usdcBalance calls balanceOf(address) on the USDC contract.
func (w *Wallet) usdcBalance(ctx context.Context) (*big.Int, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(w.address.Bytes(), 32)...)

	out, err := w.backend.CallContract(ctx, ethereum.CallMsg{To: &w.usdc, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet: usdc balanceOf: %w", err)
	}
	return new(big.Int).SetBytes(out), nil
}

func scaleDown(v *big.Int, scale float64) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(scale)).Float64()
	return f
}

// Compile-time interface check.
var _ domain.AccountSource = (*Wallet)(nil)
