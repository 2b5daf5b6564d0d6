package payload

import (
	"math/rand"
	"net"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownPayloadGenerators(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(1))

	for _, name := range []string{"create_user", "create_product", "add_to_cart", "update_cart_item", "checkout"} {
		body := p.Payload(name, rng)
		assert.NotEmpty(t, body, "generator %s", name)
	}
}

func TestUnknownPayloadGeneratorIsEmpty(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(1))

	body := p.Payload("does_not_exist", rng)
	require.NotNil(t, body)
	assert.Empty(t, body)
}

func TestPathParamsAreNumericAndInRange(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(2))

	bounds := map[string]int{"product_id": 10, "cart_item_id": 50, "order_id": 100}
	for name, max := range bounds {
		for i := 0; i < 200; i++ {
			v, err := strconv.Atoi(p.PathParam(name, rng))
			require.NoError(t, err, "generator %s", name)
			assert.GreaterOrEqual(t, v, 1)
			assert.LessOrEqual(t, v, max)
		}
	}
}

func TestUnknownPathParamFallsBack(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(3))
	assert.Equal(t, DefaultPathParam, p.PathParam("mystery", rng))
}

func TestIPForRegionStaysInsideRange(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(4))

	_, network, err := net.ParseCIDR("10.42.0.0/16")
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		ip := net.ParseIP(p.IPForRegion([]string{"10.42.0.0/16"}, rng))
		require.NotNil(t, ip)
		assert.True(t, network.Contains(ip), "ip %s escaped %s", ip, network)
	}
}

func TestIPForRegionFallsBackOnBadRanges(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(5))

	for _, ranges := range [][]string{nil, {"not-a-cidr"}, {"10.0.0.1/31"}} {
		ip := net.ParseIP(p.IPForRegion(ranges, rng))
		require.NotNil(t, ip, "ranges %v", ranges)
	}
}

func TestUserAgentDrawsFromPool(t *testing.T) {
	p := NewProvider()
	rng := rand.New(rand.NewSource(6))

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		ua := p.UserAgent(rng)
		assert.NotEmpty(t, ua)
		seen[ua] = true
	}
	assert.Greater(t, len(seen), 1, "expected more than one user agent over 200 draws")
}
