package connector

import (
	"sort"

	"github.com/pkg/errors"
)

// Endpoint is one supported ledger network. The set is fixed at build time
// and not extensible at runtime.
type Endpoint struct {
	Name      string
	URL       string
	FaucetURL string // empty on networks without a faucet
}

// HasFaucet reports whether the network grants test funds to new accounts.
func (e Endpoint) HasFaucet() bool {
	return e.FaucetURL != ""
}

var endpoints = map[string]Endpoint{
	"mainnet": {
		Name: "mainnet",
		URL:  "wss://xrplcluster.com",
	},
	"testnet": {
		Name:      "testnet",
		URL:       "wss://s.altnet.rippletest.net:51233",
		FaucetURL: "https://faucet.altnet.rippletest.net/accounts",
	},
	"devnet": {
		Name:      "devnet",
		URL:       "wss://s.devnet.rippletest.net:51233",
		FaucetURL: "https://faucet.devnet.rippletest.net/accounts",
	},
	"hooks-testnet": {
		Name:      "hooks-testnet",
		URL:       "wss://hooks-testnet-v3.xrpl-labs.com",
		FaucetURL: "https://hooks-testnet-v3.xrpl-labs.com/accounts",
	},
}

// LookupEndpoint resolves a network name to its endpoint. Unknown names fail
// with ErrUnknownEndpoint before any network activity.
func LookupEndpoint(name string) (Endpoint, error) {
	ep, ok := endpoints[name]
	if !ok {
		return Endpoint{}, errors.Wrapf(ErrUnknownEndpoint, "%q (supported: %v)", name, EndpointNames())
	}
	return ep, nil
}

// EndpointNames returns the supported network names, sorted.
func EndpointNames() []string {
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
