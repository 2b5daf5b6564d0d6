// Package payload produces synthetic request bodies, path parameters and
// session identity data (user agents, regional IPs). Generators are looked
// up by the logical name given in the endpoint config; unknown names
// degrade to an empty payload or a default parameter instead of failing,
// so a misconfigured endpoint only skews traffic shape.
package payload

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"strings"
)

// DefaultPathParam substitutes for unknown path generator names.
const DefaultPathParam = "1"

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Edge/91.0.864.59",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_6 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15E148 Safari/604.1",
	"Mozilla/5.0 (Android 11; Mobile; rv:68.0) Gecko/68.0 Firefox/88.0",
}

var (
	firstNames = []string{"Ava", "Noah", "Mia", "Liam", "Zoe", "Ethan", "Ivy", "Lucas", "Nora", "Owen"}
	lastNames  = []string{"Reed", "Hayes", "Brooks", "Lane", "Ford", "Cole", "West", "Nash", "Stone", "Hart"}
	adjectives = []string{"Compact", "Durable", "Sleek", "Portable", "Ergonomic", "Wireless", "Premium", "Eco"}
	nouns      = []string{"Speaker", "Backpack", "Lamp", "Keyboard", "Bottle", "Charger", "Notebook", "Headset"}
	streets    = []string{"Maple Ave", "Oak St", "Cedar Ln", "Birch Rd", "Elm Dr", "Pine Ct"}
	cities     = []string{"Springfield", "Riverton", "Lakeview", "Fairfield", "Ashland", "Milton"}
)

// Provider maps generator names to payload and path-parameter
// constructors. All methods take the calling worker's rng so the
// provider itself carries no mutable state and needs no locking.
type Provider struct {
	payloads map[string]func(rng *rand.Rand) map[string]any
	params   map[string]func(rng *rand.Rand) string
}

func NewProvider() *Provider {
	p := &Provider{}
	p.payloads = map[string]func(rng *rand.Rand) map[string]any{
		"create_user":      createUser,
		"create_product":   createProduct,
		"add_to_cart":      addToCart,
		"update_cart_item": updateCartItem,
		"checkout":         checkout,
	}
	p.params = map[string]func(rng *rand.Rand) string{
		"product_id":   func(rng *rand.Rand) string { return fmt.Sprintf("%d", 1+rng.Intn(10)) },
		"cart_item_id": func(rng *rand.Rand) string { return fmt.Sprintf("%d", 1+rng.Intn(50)) },
		"order_id":     func(rng *rand.Rand) string { return fmt.Sprintf("%d", 1+rng.Intn(100)) },
	}
	return p
}

// Payload builds a request body for the named generator. Unknown names
// yield an empty body.
func (p *Provider) Payload(name string, rng *rand.Rand) map[string]any {
	if gen, ok := p.payloads[name]; ok {
		return gen(rng)
	}
	return map[string]any{}
}

// PathParam builds a path parameter for the named generator. Unknown
// names yield DefaultPathParam.
func (p *Provider) PathParam(name string, rng *rand.Rand) string {
	if gen, ok := p.params[name]; ok {
		return gen(rng)
	}
	return DefaultPathParam
}

// UserAgent picks a browser identity for a new session.
func (p *Provider) UserAgent(rng *rand.Rand) string {
	return userAgents[rng.Intn(len(userAgents))]
}

// IPForRegion draws an address from one of the region's CIDR ranges.
// Without usable ranges it falls back to a random public-looking IPv4.
func (p *Provider) IPForRegion(ipRanges []string, rng *rand.Rand) string {
	for _, attempt := range shuffled(ipRanges, rng) {
		_, network, err := net.ParseCIDR(attempt)
		if err != nil || network.IP.To4() == nil {
			continue
		}
		base := binary.BigEndian.Uint32(network.IP.To4())
		ones, bits := network.Mask.Size()
		hostBits := uint(bits - ones)
		if hostBits < 2 {
			continue
		}
		// Skip the network and broadcast addresses.
		span := (uint32(1) << hostBits) - 2
		addr := base + 1 + uint32(rng.Int63n(int64(span)))
		ip := make(net.IP, 4)
		binary.BigEndian.PutUint32(ip, addr)
		return ip.String()
	}
	return fmt.Sprintf("%d.%d.%d.%d", 1+rng.Intn(222), rng.Intn(256), rng.Intn(256), 1+rng.Intn(254))
}

func shuffled(ranges []string, rng *rand.Rand) []string {
	if len(ranges) <= 1 {
		return ranges
	}
	out := make([]string, len(ranges))
	copy(out, ranges)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// --- payload constructors ---

func createUser(rng *rand.Rand) map[string]any {
	first := firstNames[rng.Intn(len(firstNames))]
	last := lastNames[rng.Intn(len(lastNames))]
	username := fmt.Sprintf("%s%s%d", strings.ToLower(first), strings.ToLower(last), 100+rng.Intn(900))
	return map[string]any{
		"username":   username,
		"email":      username + "@example.com",
		"first_name": first,
		"last_name":  last,
	}
}

func createProduct(rng *rand.Rand) map[string]any {
	name := adjectives[rng.Intn(len(adjectives))] + " " + nouns[rng.Intn(len(nouns))]
	return map[string]any{
		"name":           name,
		"description":    "The " + strings.ToLower(name) + " for everyday use.",
		"price":          float64(int(9.99*100+rng.Float64()*99000)) / 100,
		"category_id":    1 + rng.Intn(5),
		"stock_quantity": rng.Intn(500),
		"sku":            fmt.Sprintf("SKU%d", 10000+rng.Intn(90000)),
	}
}

func addToCart(rng *rand.Rand) map[string]any {
	return map[string]any{
		"product_id": 1 + rng.Intn(10),
		"quantity":   1 + rng.Intn(3),
	}
}

func updateCartItem(rng *rand.Rand) map[string]any {
	return map[string]any{
		"quantity": 1 + rng.Intn(5),
	}
}

func checkout(rng *rand.Rand) map[string]any {
	return map[string]any{
		"shipping_address": fmt.Sprintf("%d %s, %s",
			1+rng.Intn(9999),
			streets[rng.Intn(len(streets))],
			cities[rng.Intn(len(cities))]),
	}
}
