package invoice

import "sort"

// Catalog is the set of store currencies offered to a payer. Only enabled
// entries are retained; payers are never shown a disabled configuration.
type Catalog struct {
	entries []StoreCurrency
}

// NewCatalog builds a catalog from store currency configs, dropping
// disabled entries.
func NewCatalog(configs []StoreCurrency) Catalog {
	entries := make([]StoreCurrency, 0, len(configs))
	for _, sc := range configs {
		if sc.Enabled {
			entries = append(entries, sc)
		}
	}
	return Catalog{entries: entries}
}

// Entries returns all enabled entries.
func (c Catalog) Entries() []StoreCurrency {
	return c.entries
}

// Len returns the number of enabled entries.
func (c Catalog) Len() int {
	return len(c.entries)
}

// AvailableNetworks returns the de-duplicated network identifiers present,
// sorted for stable rendering.
func (c Catalog) AvailableNetworks() []string {
	seen := make(map[string]bool, len(c.entries))
	networks := make([]string, 0, len(c.entries))
	for _, sc := range c.entries {
		if !seen[sc.NetworkID] {
			seen[sc.NetworkID] = true
			networks = append(networks, sc.NetworkID)
		}
	}
	sort.Strings(networks)
	return networks
}

// FilterByNetwork returns the entries on the given network. An empty network
// selects nothing; absence is an empty slice, never an error.
func (c Catalog) FilterByNetwork(network string) []StoreCurrency {
	if network == "" {
		return nil
	}
	out := make([]StoreCurrency, 0, len(c.entries))
	for _, sc := range c.entries {
		if sc.NetworkID == network {
			out = append(out, sc)
		}
	}
	return out
}

// Find returns the entry matching a currency symbol on a network.
func (c Catalog) Find(symbol, network string) (StoreCurrency, bool) {
	for _, sc := range c.entries {
		if sc.Symbol == symbol && sc.NetworkID == network {
			return sc, true
		}
	}
	return StoreCurrency{}, false
}
