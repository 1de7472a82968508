package uniswap

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

func callMsg(to common.Address, data []byte) ethereum.CallMsg {
	return ethereum.CallMsg{To: &to, Data: data}
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// nativeToWei converts a native-currency amount to wei (18 decimals).
func nativeToWei(amount float64) *big.Int {
	return floatToWei(amount, 18)
}

func floatToWei(amount float64, decimals uint8) *big.Int {
	if amount <= 0 {
		return big.NewInt(0)
	}
	f := new(big.Float).SetFloat64(amount)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Mul(f, scale)
	wei, _ := f.Int(nil)
	return wei
}

func weiToFloat(wei *big.Int, decimals uint8) float64 {
	if wei == nil || wei.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetInt(wei)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f.Quo(f, scale)
	out, _ := f.Float64()
	return out
}
