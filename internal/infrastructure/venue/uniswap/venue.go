package uniswap

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"tokentrader/internal/application/port"
)

const routerABIJSON = `[
  {"inputs":[{"components":[
      {"internalType":"address","name":"tokenIn","type":"address"},
      {"internalType":"address","name":"tokenOut","type":"address"},
      {"internalType":"uint24","name":"fee","type":"uint24"},
      {"internalType":"address","name":"recipient","type":"address"},
      {"internalType":"uint256","name":"deadline","type":"uint256"},
      {"internalType":"uint256","name":"amountIn","type":"uint256"},
      {"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},
      {"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],
    "internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],
   "name":"exactInputSingle",
   "outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],
   "stateMutability":"payable","type":"function"}
]`

const erc20ABIJSON = `[
  {"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],
   "name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"_owner","type":"address"}],
   "name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

const (
	openGasLimit    = 300_000
	approveGasLimit = 100_000
	closeGasLimit   = 350_000
)

// Config for the on-chain venue.
type Config struct {
	RPCURL          string
	RouterAddress   string
	WrappedNative   string
	ChainID         int64
	PoolFee         int64
	SlippagePercent float64
	DeadlineSec     int64
	PrivateKey      string // hex, no 0x prefix
}

// Venue settles swaps against a V3-style router. Open is a single payable
// swap from native currency into the token; Close is two-phase: an ERC-20
// allowance for the router, then the swap back to wrapped native. Each phase
// is one transaction, mined before the next step proceeds.
type Venue struct {
	client  *ethclient.Client
	cfg     Config
	chainID *big.Int

	key     *ecdsa.PrivateKey
	account common.Address
	router  common.Address
	wrapped common.Address

	routerABI abi.ABI
	erc20ABI  abi.ABI

	// oracle supplies USD quotes for slippage floors; best-effort only.
	oracle port.PriceOracle
}

func New(ctx context.Context, cfg Config, oracle port.PriceOracle) (*Venue, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("venue: private key not set")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("venue: parse private key: %w", err)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("venue: dial %s: %w", cfg.RPCURL, err)
	}

	routerABI, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("venue: router abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("venue: erc20 abi: %w", err)
	}

	v := &Venue{
		client:    client,
		cfg:       cfg,
		chainID:   big.NewInt(cfg.ChainID),
		key:       key,
		account:   crypto.PubkeyToAddress(key.PublicKey),
		router:    common.HexToAddress(cfg.RouterAddress),
		wrapped:   common.HexToAddress(cfg.WrappedNative),
		routerABI: routerABI,
		erc20ABI:  erc20ABI,
		oracle:    oracle,
	}
	return v, nil
}

// Shutdown releases the RPC connection.
func (v *Venue) Shutdown() error {
	v.client.Close()
	return nil
}

// Open swaps amountBase native currency into the token. The fill quantity is
// measured as the token balance delta of the trading account.
func (v *Venue) Open(ctx context.Context, address string, amountBase float64) (port.Fill, error) {
	token := common.HexToAddress(address)
	amountIn := nativeToWei(amountBase)

	before, decimals, err := v.tokenBalance(ctx, token)
	if err != nil {
		return port.Fill{}, fmt.Errorf("open %s: balance: %w", address, err)
	}

	minOut := v.minTokensOut(ctx, address, amountBase, decimals)
	input, err := v.routerABI.Pack("exactInputSingle", swapParams{
		TokenIn:           v.wrapped,
		TokenOut:          token,
		Fee:               big.NewInt(v.cfg.PoolFee),
		Recipient:         v.account,
		Deadline:          v.deadline(),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return port.Fill{}, fmt.Errorf("open %s: pack: %w", address, err)
	}

	receipt, txHash, err := v.sendAndWait(ctx, v.router, amountIn, openGasLimit, input)
	if err != nil {
		return port.Fill{}, fmt.Errorf("open %s: %w", address, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return port.Fill{}, fmt.Errorf("open %s: tx %s reverted", address, txHash)
	}

	after, _, err := v.tokenBalance(ctx, token)
	if err != nil {
		return port.Fill{}, fmt.Errorf("open %s: post balance: %w", address, err)
	}

	qty := weiToFloat(new(big.Int).Sub(after, before), decimals)
	if qty <= 0 {
		return port.Fill{}, fmt.Errorf("open %s: swap settled but no tokens received", address)
	}
	return port.Fill{Quantity: qty, SettlementRef: txHash}, nil
}

// Approve grants the router a spending allowance over the full held balance.
// Phase one of a close; its transaction must mine successfully before the
// swap is attempted.
func (v *Venue) Approve(ctx context.Context, address string) error {
	token := common.HexToAddress(address)
	balance, _, err := v.tokenBalance(ctx, token)
	if err != nil {
		return fmt.Errorf("approve %s: balance: %w", address, err)
	}
	if balance.Sign() <= 0 {
		return fmt.Errorf("approve %s: zero token balance", address)
	}

	input, err := v.erc20ABI.Pack("approve", v.router, balance)
	if err != nil {
		return fmt.Errorf("approve %s: pack: %w", address, err)
	}

	receipt, txHash, err := v.sendAndWait(ctx, token, big.NewInt(0), approveGasLimit, input)
	if err != nil {
		return fmt.Errorf("approve %s: %w", address, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("approve %s: tx %s reverted", address, txHash)
	}
	return nil
}

// Close swaps the held quantity back to wrapped native. Proceeds are the
// wrapped-native balance delta.
func (v *Venue) Close(ctx context.Context, address string, quantity float64) (port.Fill, error) {
	token := common.HexToAddress(address)

	balance, decimals, err := v.tokenBalance(ctx, token)
	if err != nil {
		return port.Fill{}, fmt.Errorf("close %s: balance: %w", address, err)
	}
	amountIn := floatToWei(quantity, decimals)
	if amountIn.Cmp(balance) > 0 {
		// Sell what is actually held; fee-on-transfer tokens shrink balances.
		amountIn = balance
	}
	if amountIn.Sign() <= 0 {
		return port.Fill{}, fmt.Errorf("close %s: nothing to sell", address)
	}

	wrappedBefore, wrappedDecimals, err := v.tokenBalance(ctx, v.wrapped)
	if err != nil {
		return port.Fill{}, fmt.Errorf("close %s: wrapped balance: %w", address, err)
	}

	minOut := v.minNativeOut(ctx, address, quantity, wrappedDecimals)
	input, err := v.routerABI.Pack("exactInputSingle", swapParams{
		TokenIn:           token,
		TokenOut:          v.wrapped,
		Fee:               big.NewInt(v.cfg.PoolFee),
		Recipient:         v.account,
		Deadline:          v.deadline(),
		AmountIn:          amountIn,
		AmountOutMinimum:  minOut,
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return port.Fill{}, fmt.Errorf("close %s: pack: %w", address, err)
	}

	receipt, txHash, err := v.sendAndWait(ctx, v.router, big.NewInt(0), closeGasLimit, input)
	if err != nil {
		return port.Fill{}, fmt.Errorf("close %s: %w", address, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return port.Fill{}, fmt.Errorf("close %s: tx %s reverted", address, txHash)
	}

	wrappedAfter, _, err := v.tokenBalance(ctx, v.wrapped)
	if err != nil {
		return port.Fill{}, fmt.Errorf("close %s: post balance: %w", address, err)
	}
	proceeds := weiToFloat(new(big.Int).Sub(wrappedAfter, wrappedBefore), wrappedDecimals)

	return port.Fill{Quantity: quantity, ProceedsBase: proceeds, SettlementRef: txHash}, nil
}

type swapParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

func (v *Venue) sendAndWait(ctx context.Context, to common.Address, value *big.Int, gasLimit uint64, input []byte) (*types.Receipt, string, error) {
	nonce, err := v.client.PendingNonceAt(ctx, v.account)
	if err != nil {
		return nil, "", fmt.Errorf("nonce: %w", err)
	}
	gasPrice, err := v.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     input,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(v.chainID), v.key)
	if err != nil {
		return nil, "", fmt.Errorf("sign: %w", err)
	}
	if err := v.client.SendTransaction(ctx, signed); err != nil {
		return nil, "", fmt.Errorf("send: %w", err)
	}

	txHash := signed.Hash().Hex()
	log.Info().Str("tx", txHash).Str("to", to.Hex()).Msg("transaction sent")

	receipt, err := bind.WaitMined(ctx, v.client, signed)
	if err != nil {
		return nil, txHash, fmt.Errorf("wait mined %s: %w", txHash, err)
	}
	return receipt, txHash, nil
}

func (v *Venue) tokenBalance(ctx context.Context, token common.Address) (*big.Int, uint8, error) {
	decimals, err := v.tokenDecimals(ctx, token)
	if err != nil {
		return nil, 0, err
	}

	input, err := v.erc20ABI.Pack("balanceOf", v.account)
	if err != nil {
		return nil, 0, err
	}
	out, err := v.client.CallContract(ctx, callMsg(token, input), nil)
	if err != nil {
		return nil, 0, err
	}
	res, err := v.erc20ABI.Unpack("balanceOf", out)
	if err != nil || len(res) == 0 {
		return nil, 0, fmt.Errorf("balanceOf unpack: %v", err)
	}
	balance, ok := res[0].(*big.Int)
	if !ok {
		return nil, 0, fmt.Errorf("balanceOf: unexpected type %T", res[0])
	}
	return balance, decimals, nil
}

func (v *Venue) tokenDecimals(ctx context.Context, token common.Address) (uint8, error) {
	input, err := v.erc20ABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	out, err := v.client.CallContract(ctx, callMsg(token, input), nil)
	if err != nil || len(out) == 0 {
		// Non-standard tokens without decimals(): assume 18.
		return 18, nil
	}
	res, err := v.erc20ABI.Unpack("decimals", out)
	if err != nil || len(res) == 0 {
		return 18, nil
	}
	if d, ok := res[0].(uint8); ok {
		return d, nil
	}
	return 18, nil
}

// minTokensOut floors the open swap output using oracle quotes for the token
// and the native currency. Without usable quotes the floor is zero, mirroring
// a market order on an illiquid new listing.
func (v *Venue) minTokensOut(ctx context.Context, address string, amountBase float64, decimals uint8) *big.Int {
	tokenUSD, nativeUSD, ok := v.usdQuotes(ctx, address)
	if !ok {
		return big.NewInt(0)
	}
	expected := amountBase * nativeUSD / tokenUSD
	return floatToWei(expected*(1-v.cfg.SlippagePercent/100), decimals)
}

func (v *Venue) minNativeOut(ctx context.Context, address string, quantity float64, wrappedDecimals uint8) *big.Int {
	tokenUSD, nativeUSD, ok := v.usdQuotes(ctx, address)
	if !ok {
		return big.NewInt(0)
	}
	expected := quantity * tokenUSD / nativeUSD
	return floatToWei(expected*(1-v.cfg.SlippagePercent/100), wrappedDecimals)
}

func (v *Venue) usdQuotes(ctx context.Context, address string) (tokenUSD, nativeUSD float64, ok bool) {
	if v.oracle == nil {
		return 0, 0, false
	}
	tq, err := v.oracle.Price(ctx, address)
	if err != nil || tq.PriceUSD <= 0 {
		log.Warn().Err(err).Str("address", address).Msg("no token quote for slippage floor")
		return 0, 0, false
	}
	nq, err := v.oracle.Price(ctx, v.cfg.WrappedNative)
	if err != nil || nq.PriceUSD <= 0 {
		log.Warn().Err(err).Msg("no native quote for slippage floor")
		return 0, 0, false
	}
	return tq.PriceUSD, nq.PriceUSD, true
}

func (v *Venue) deadline() *big.Int {
	return big.NewInt(nowUnix() + v.cfg.DeadlineSec)
}

var _ port.ExecutionVenue = (*Venue)(nil)
