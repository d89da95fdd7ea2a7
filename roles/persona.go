package roles

import "math/rand"

// PersonaPool is the fixed set of aliases assigned to customer-care agents.
// Customers only ever see these names.
var PersonaPool = []string{
	"Alex", "Sam", "Jordan", "Taylor", "Morgan",
	"Casey", "Riley", "Jamie", "Avery", "Quinn",
}

// PickPersona selects a persona from pool using the given random source.
// With an empty pool it falls back to a neutral alias.
func PickPersona(pool []string, rng *rand.Rand) string {
	if len(pool) == 0 {
		return "Support"
	}
	return pool[rng.Intn(len(pool))]
}
