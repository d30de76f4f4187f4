package state

var (
	tokenBalancePrefix = []byte("activity/tokenbal/")
	activityLogPrefix  = []byte("activity/log/")
	vaultSeed          = []byte("activity/vault")
)
