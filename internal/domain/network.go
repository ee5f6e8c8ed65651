package domain

import "strings"

type Network string

const (
	NetworkMainnet  Network = "mainnet-beta"
	NetworkDevnet   Network = "devnet"
	NetworkTestnet  Network = "testnet"
	NetworkLocalnet Network = "localnet"
	NetworkUnknown  Network = "unknown"
)

// LocalnetGenesisHash is reported by the in-process ledger.
const LocalnetGenesisHash = "guardians-localnet"

var genesisNetworks = map[string]Network{
	"5eykt4UsFv8P8NJdTREpY1vzqKqZKvdpKuc147dw2N9d": NetworkMainnet,
	"EtWTRABZaYq6iMfeYKouRu166VU2xqa1wcaWoxPkrZBG": NetworkDevnet,
	"4uhcVJyU9pJkvQyS88uRDiswHXSCkY3zQawwpjk2NsNY": NetworkTestnet,
	LocalnetGenesisHash: NetworkLocalnet,
}

func NetworkForGenesis(hash string) Network {
	if n, ok := genesisNetworks[strings.TrimSpace(hash)]; ok {
		return n
	}
	return NetworkUnknown
}

func ParseNetwork(s string) Network {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mainnet", "mainnet-beta":
		return NetworkMainnet
	case "devnet":
		return NetworkDevnet
	case "testnet":
		return NetworkTestnet
	case "localnet", "local", "memory":
		return NetworkLocalnet
	default:
		return NetworkUnknown
	}
}

type NetworkConfig struct {
	Network   Network
	ProgramID PublicKey
	// SkipGenesisCheck disables the genesis hash comparison, for endpoints
	// such as private validators whose genesis is not a known network.
	SkipGenesisCheck bool
}
