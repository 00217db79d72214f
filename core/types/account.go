package types

import "math/big"

// Account holds the spendable balances the venue ledger tracks for one
// address. VLT is the native base asset used as collateral, USDM is the
// synthetic stable asset minted against it and GMV is the governance-reward
// asset paid out by the reward hooks.
type Account struct {
	Nonce       uint64   `json:"nonce"`
	BalanceVLT  *big.Int `json:"balanceVLT"`
	BalanceUSDM *big.Int `json:"balanceUSDM"`
	BalanceGMV  *big.Int `json:"balanceGMV"`
}

// EnsureBalances populates nil balance fields so JSON round trips and
// arithmetic are safe.
func (a *Account) EnsureBalances() *Account {
	if a == nil {
		return &Account{
			BalanceVLT:  big.NewInt(0),
			BalanceUSDM: big.NewInt(0),
			BalanceGMV:  big.NewInt(0),
		}
	}
	if a.BalanceVLT == nil {
		a.BalanceVLT = big.NewInt(0)
	}
	if a.BalanceUSDM == nil {
		a.BalanceUSDM = big.NewInt(0)
	}
	if a.BalanceGMV == nil {
		a.BalanceGMV = big.NewInt(0)
	}
	return a
}
