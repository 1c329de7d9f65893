package invoice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testConfigs() []StoreCurrency {
	return []StoreCurrency{
		{ID: "sc1", CurrencyID: "c1", Symbol: "USDT", NetworkID: "ethereum", Enabled: true},
		{ID: "sc2", CurrencyID: "c2", Symbol: "USDT", NetworkID: "tron", Enabled: true},
		{ID: "sc3", CurrencyID: "c3", Symbol: "ETH", NetworkID: "ethereum", Enabled: true},
		{ID: "sc4", CurrencyID: "c4", Symbol: "BTC", NetworkID: "bitcoin", Enabled: false},
	}
}

func TestNewCatalog_DropsDisabled(t *testing.T) {
	c := NewCatalog(testConfigs())
	assert.Equal(t, 3, c.Len())
	for _, sc := range c.Entries() {
		assert.True(t, sc.Enabled)
	}
}

func TestCatalog_AvailableNetworks(t *testing.T) {
	c := NewCatalog(testConfigs())
	// Deduplicated, sorted, and the disabled bitcoin entry excluded.
	assert.Equal(t, []string{"ethereum", "tron"}, c.AvailableNetworks())
}

func TestCatalog_FilterByNetwork(t *testing.T) {
	c := NewCatalog(testConfigs())

	eth := c.FilterByNetwork("ethereum")
	assert.Len(t, eth, 2)
	for _, sc := range eth {
		assert.Equal(t, "ethereum", sc.NetworkID)
	}

	// No selection yields an empty sequence, not a failure.
	assert.Empty(t, c.FilterByNetwork(""))
	// Unknown networks likewise.
	assert.Empty(t, c.FilterByNetwork("solana"))
}

func TestCatalog_Find(t *testing.T) {
	c := NewCatalog(testConfigs())

	sc, ok := c.Find("USDT", "tron")
	assert.True(t, ok)
	assert.Equal(t, "c2", sc.CurrencyID)

	// Disabled entries are not findable.
	_, ok = c.Find("BTC", "bitcoin")
	assert.False(t, ok)

	_, ok = c.Find("USDT", "solana")
	assert.False(t, ok)
}

func TestCatalog_Empty(t *testing.T) {
	c := NewCatalog(nil)
	assert.Zero(t, c.Len())
	assert.Empty(t, c.AvailableNetworks())
	assert.Empty(t, c.FilterByNetwork("ethereum"))
}
