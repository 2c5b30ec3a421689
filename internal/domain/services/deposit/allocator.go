package deposit

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tronpay-service/tronpay_service/pkg/usdt"
)

// maxPerturbationUnits bounds the random suffix added to a requested
// amount, in units of 1e-8 USDT. 9999 units is under 0.0001 USDT, small
// enough that wallets display the requested amount unchanged at two
// decimals while leaving thousands of candidates per requested amount.
const maxPerturbationUnits = 9999

// Allocator generates candidate payable amounts for a requested deposit
// amount. Uniqueness among pending deposits is NOT decided here; the
// database partial unique index is the arbiter, and the service retries
// with a fresh candidate on collision.
type Allocator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAllocator creates an allocator with its own randomness source
func NewAllocator() *Allocator {
	return &Allocator{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Candidate returns the payable amount to try on the given attempt. The
// first attempt is the requested amount itself, so most users pay exactly
// what they asked for; later attempts add a random sub-cent suffix.
func (a *Allocator) Candidate(requested decimal.Decimal, attempt int) decimal.Decimal {
	normalized := usdt.Normalize(requested)
	if attempt == 0 {
		return normalized
	}

	a.mu.Lock()
	units := int64(1 + a.rnd.Intn(maxPerturbationUnits))
	a.mu.Unlock()

	return normalized.Add(usdt.FromUnits(units))
}
