package activity

import "math/big"

// Fee computes the platform cut as floor(gross * ratioBps / 10000). The
// intermediate product can exceed 64 bits, hence the big.Int arithmetic; the
// result always fits because ratioBps never exceeds 10000.
func Fee(gross uint64, ratioBps uint16) uint64 {
	if ratioBps == 0 || gross == 0 {
		return 0
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(gross), big.NewInt(int64(ratioBps)))
	fee.Div(fee, big.NewInt(int64(MaxFeeRatioBps)))
	return fee.Uint64()
}
