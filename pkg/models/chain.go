package models

// ChainID tags a retail chain. Only the chains listed in Chains are supported.
type ChainID string

const (
	Chain1 ChainID = "chain1" // Auto Mercado
	Chain2 ChainID = "chain2" // PriceSmart
)

// Chains lists the supported chains in display order.
var Chains = []ChainID{Chain1, Chain2}

// ParseChain validates a chain id coming from a request or the store.
func ParseChain(s string) (ChainID, error) {
	for _, c := range Chains {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &UnsupportedChainError{Chain: s}
}
