package onchain

// redeem.go — On-chain CTF redemption executor for Polymarket.
//
// The CTF (Conditional Token Framework) redeemPositions() function burns
// the outcome tokens of a resolved condition and pays out USDC.e
// collateral: winning tokens pay 1.00, losing tokens pay nothing.
//
// This file handles:
//   - Dynamic gas estimation with a cached gas price
//   - ERC1155 approval checks/setup for the exchange contracts
//   - The redeemPositions transaction and its receipt

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/updown/internal/domain"
	"github.com/alejandrodnm/updown/internal/ports"
)

const (
	polygonChainID = int64(137)

	// USDC.e collateral on Polygon
	usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

	// CTF contract — holds conditional tokens (ERC1155)
	ctfAddress = "0x4D97DCd97eC945f40cF65F87097ACe5EA0476045"

	// Exchange contracts that need ERC1155 setApprovalForAll so sells work
	normalExchange  = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	negRiskExchange = "0xC5d563A36AE78145C45a50134d48A1215220f80a"

	// Gas limits (conservative upper bounds)
	redeemGasLimit   = uint64(200_000)
	approvalGasLimit = uint64(80_000)

	// Gas price update interval
	gasPriceUpdateInterval = 5 * time.Minute
)

// Contract ABIs
var (
	ctfABI     abi.ABI
	erc1155ABI abi.ABI
)

func init() {
	var err error

	ctfABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "redeemPositions",
			"type": "function",
			"inputs": [
				{"name": "collateralToken", "type": "address"},
				{"name": "parentCollectionId", "type": "bytes32"},
				{"name": "conditionId", "type": "bytes32"},
				{"name": "indexSets", "type": "uint256[]"}
			],
			"outputs": []
		},
		{
			"name": "payoutDenominator",
			"type": "function",
			"inputs": [{"name": "conditionId", "type": "bytes32"}],
			"outputs": [{"name": "", "type": "uint256"}]
		}
	]`))
	if err != nil {
		panic("ctf abi parse: " + err.Error())
	}

	erc1155ABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "setApprovalForAll",
			"type": "function",
			"inputs": [
				{"name": "operator", "type": "address"},
				{"name": "approved", "type": "bool"}
			],
			"outputs": []
		},
		{
			"name": "isApprovedForAll",
			"type": "function",
			"inputs": [
				{"name": "account", "type": "address"},
				{"name": "operator", "type": "address"}
			],
			"outputs": [{"name": "", "type": "bool"}]
		}
	]`))
	if err != nil {
		panic("erc1155 abi parse: " + err.Error())
	}
}

// PositionLister serves the wallet's unclaimed positions; the data-api
// client implements it.
type PositionLister interface {
	RedeemablePositions(ctx context.Context, proxyWallet string) ([]domain.RedeemablePosition, error)
}

// RedeemClient implements ports.Redeemer.
type RedeemClient struct {
	client      *ethclient.Client
	privateKey  []byte
	address     common.Address
	proxyWallet string
	positions   PositionLister

	mu           sync.RWMutex
	cachedGasWei *big.Int
	gasUpdatedAt time.Time
}

// NewRedeemClient creates a redeem executor connected to the given
// Polygon RPC. privateKeyHex may carry a 0x prefix.
func NewRedeemClient(rpcURL, privateKeyHex, proxyWallet string, positions PositionLister) (*RedeemClient, error) {
	pkBytes, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("redeem: decode private key: %w", err)
	}

	privKey, err := crypto.ToECDSA(pkBytes)
	if err != nil {
		return nil, fmt.Errorf("redeem: invalid private key: %w", err)
	}

	addr := crypto.PubkeyToAddress(privKey.PublicKey)
	if proxyWallet == "" {
		proxyWallet = addr.Hex()
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("redeem: dial rpc %s: %w", rpcURL, err)
	}

	return &RedeemClient{
		client:      client,
		privateKey:  pkBytes,
		address:     addr,
		proxyWallet: proxyWallet,
		positions:   positions,
	}, nil
}

// Redeem claims the payout of a resolved condition. Both index sets are
// passed so winner and loser tokens are burned in one transaction.
func (rc *RedeemClient) Redeem(ctx context.Context, conditionID string) (string, error) {
	condBytes, err := hexToBytes32(conditionID)
	if err != nil {
		return "", fmt.Errorf("redeem: invalid conditionID %s: %w", conditionID, err)
	}

	resolved, err := rc.conditionResolved(ctx, condBytes)
	if err != nil {
		return "", ports.Transient("redeem: check resolution", err)
	}
	if !resolved {
		return "", ports.Transient("redeem",
			fmt.Errorf("condition %s not resolved on-chain yet", conditionID))
	}

	callData, err := ctfABI.Pack("redeemPositions",
		common.HexToAddress(usdcEAddress),
		[32]byte{},
		condBytes,
		[]*big.Int{big.NewInt(1), big.NewInt(2)},
	)
	if err != nil {
		return "", fmt.Errorf("redeem: pack: %w", err)
	}

	privKey, err := crypto.ToECDSA(rc.privateKey)
	if err != nil {
		return "", fmt.Errorf("redeem: private key: %w", err)
	}

	nonce, err := rc.client.PendingNonceAt(ctx, rc.address)
	if err != nil {
		return "", ports.Transient("redeem: nonce", err)
	}

	gasPrice, err := rc.getGasPrice(ctx)
	if err != nil {
		return "", ports.Transient("redeem: gas price", err)
	}

	ctfAddr := common.HexToAddress(ctfAddress)

	gasEstimate, err := rc.client.EstimateGas(ctx, ethereum.CallMsg{
		From:     rc.address,
		To:       &ctfAddr,
		GasPrice: gasPrice,
		Data:     callData,
	})
	if err != nil {
		// redeemPositions with a zero balance does not revert, so a
		// failed estimate is an RPC problem, not a double redeem.
		gasEstimate = redeemGasLimit
		slog.Warn("redeem: gas estimate failed, using default", "err", err, "limit", redeemGasLimit)
	}
	// Add 20% buffer
	gasEstimate = gasEstimate * 12 / 10

	tx := types.NewTransaction(nonce, ctfAddr, big.NewInt(0), gasEstimate, gasPrice, callData)

	chainID := big.NewInt(polygonChainID)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(chainID), privKey)
	if err != nil {
		return "", fmt.Errorf("redeem: sign tx: %w", err)
	}

	if err := rc.client.SendTransaction(ctx, signedTx); err != nil {
		return "", ports.Transient("redeem: send tx", err)
	}

	txHash := signedTx.Hash().Hex()
	slog.Info("redeem: transaction sent", "condition", shortCondition(conditionID), "tx", txHash)

	receiptCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	receipt, err := rc.waitForReceipt(receiptCtx, signedTx.Hash())
	if err != nil {
		// TX sent but unconfirmed — report success optimistically, the
		// ledger records the hash either way.
		slog.Warn("redeem: could not confirm receipt, tx may still succeed", "tx", txHash, "err", err)
		return txHash, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("redeem: tx reverted: %s", txHash)
	}

	slog.Info("redeem: confirmed",
		"condition", shortCondition(conditionID),
		"tx", txHash,
		"gas_used", receipt.GasUsed,
	)
	return txHash, nil
}

// ListRedeemable returns every condition the proxy wallet can still
// redeem, straight from the data-api.
func (rc *RedeemClient) ListRedeemable(ctx context.Context) ([]domain.RedeemablePosition, error) {
	if rc.positions == nil {
		return nil, fmt.Errorf("redeem: no position lister configured")
	}
	return rc.positions.RedeemablePositions(ctx, rc.proxyWallet)
}

// conditionResolved checks the CTF payout denominator: zero until the
// oracle reports.
func (rc *RedeemClient) conditionResolved(ctx context.Context, conditionID [32]byte) (bool, error) {
	callData, err := ctfABI.Pack("payoutDenominator", conditionID)
	if err != nil {
		return false, err
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	result, err := rc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ctfAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, err
	}

	vals, err := ctfABI.Unpack("payoutDenominator", result)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	return vals[0].(*big.Int).Sign() > 0, nil
}

// EnsureApprovals checks and sets ERC1155 setApprovalForAll on the
// exchange contracts so risk-management sells can transfer tokens.
func (rc *RedeemClient) EnsureApprovals(ctx context.Context) error {
	operators := []string{normalExchange, negRiskExchange}

	for _, op := range operators {
		approved, err := rc.isApprovedForAll(ctx, common.HexToAddress(op))
		if err != nil {
			return fmt.Errorf("check ERC1155 approval for %s: %w", op, err)
		}
		if approved {
			slog.Debug("redeem: ERC1155 approval already set", "operator", op)
			continue
		}

		slog.Info("redeem: setting ERC1155 approval", "operator", op)
		if err := rc.setApprovalForAll(ctx, common.HexToAddress(op)); err != nil {
			return fmt.Errorf("set ERC1155 approval for %s: %w", op, err)
		}
		slog.Info("redeem: ERC1155 approval set", "operator", op)
	}
	return nil
}

// isApprovedForAll checks ERC1155 approval for an operator on the CTF contract.
func (rc *RedeemClient) isApprovedForAll(ctx context.Context, operator common.Address) (bool, error) {
	callData, err := erc1155ABI.Pack("isApprovedForAll", rc.address, operator)
	if err != nil {
		return false, err
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	result, err := rc.client.CallContract(ctx, ethereum.CallMsg{
		To:   &ctfAddr,
		Data: callData,
	}, nil)
	if err != nil {
		return false, err
	}

	vals, err := erc1155ABI.Unpack("isApprovedForAll", result)
	if err != nil || len(vals) == 0 {
		return false, err
	}
	return vals[0].(bool), nil
}

// setApprovalForAll sends a setApprovalForAll transaction on the CTF contract.
func (rc *RedeemClient) setApprovalForAll(ctx context.Context, operator common.Address) error {
	callData, err := erc1155ABI.Pack("setApprovalForAll", operator, true)
	if err != nil {
		return err
	}

	privKey, err := crypto.ToECDSA(rc.privateKey)
	if err != nil {
		return err
	}

	nonce, err := rc.client.PendingNonceAt(ctx, rc.address)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}

	gasPrice, err := rc.getGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	ctfAddr := common.HexToAddress(ctfAddress)
	tx := types.NewTransaction(nonce, ctfAddr, big.NewInt(0), approvalGasLimit, gasPrice, callData)

	chainID := big.NewInt(polygonChainID)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), privKey)
	if err != nil {
		return err
	}

	if err := rc.client.SendTransaction(ctx, signed); err != nil {
		return err
	}

	receiptCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	receipt, err := rc.waitForReceipt(receiptCtx, signed.Hash())
	if err != nil {
		return fmt.Errorf("wait receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("setApprovalForAll tx reverted")
	}
	return nil
}

// getGasPrice returns the current gas price, with caching to avoid excessive RPC calls.
func (rc *RedeemClient) getGasPrice(ctx context.Context) (*big.Int, error) {
	rc.mu.RLock()
	cached := rc.cachedGasWei
	updatedAt := rc.gasUpdatedAt
	rc.mu.RUnlock()

	if cached != nil && time.Since(updatedAt) < gasPriceUpdateInterval {
		return cached, nil
	}

	price, err := rc.client.SuggestGasPrice(ctx)
	if err != nil {
		if cached != nil {
			return cached, nil
		}
		return big.NewInt(30_000_000_000), nil // 30 gwei fallback
	}

	// Add 10% buffer for faster inclusion (copy to avoid mutating SuggestGasPrice return)
	buffered := new(big.Int).Mul(price, big.NewInt(11))
	buffered.Div(buffered, big.NewInt(10))
	price = buffered

	rc.mu.Lock()
	rc.cachedGasWei = price
	rc.gasUpdatedAt = time.Now()
	rc.mu.Unlock()

	return price, nil
}

// waitForReceipt polls for a transaction receipt until confirmed or timeout.
func (rc *RedeemClient) waitForReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := rc.client.TransactionReceipt(ctx, txHash)
			if err != nil {
				continue // not yet mined
			}
			return receipt, nil
		}
	}
}

// hexToBytes32 converts a 0x-prefixed hex string to [32]byte.
func hexToBytes32(s string) ([32]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return [32]byte{}, fmt.Errorf("expected 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return [32]byte{}, err
	}
	var arr [32]byte
	copy(arr[:], b)
	return arr, nil
}

func shortCondition(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
