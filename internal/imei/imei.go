// Package imei validates IMEI numbers and resolves brand/model details
// from the type allocation code. Lookups follow the two-step contract the
// intake client expects: Lookup stores a result under a numeric history id
// and Result retrieves it until it expires.
package imei

import (
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

var (
	ErrMalformed      = errors.New("malformed imei")
	ErrResultNotFound = errors.New("lookup result not found")
)

// Receipt is returned by Lookup and redeemed via Result.
type Receipt struct {
	HistoryID int64  `json:"history_id"`
	Message   string `json:"message"`
}

// Result is the outcome of an IMEI lookup.
type Result struct {
	IMEI  string `json:"imei"`
	Brand string `json:"brand"`
	Model string `json:"model"`
	Valid bool   `json:"valid"`
}

// tacEntry maps an 8-digit type allocation code to a device.
type tacEntry struct {
	brand string
	model string
}

// Built-in TAC table. Unknown codes still yield a result; only the
// brand/model stay generic.
var tacTable = map[string]tacEntry{
	"35328110": {"Apple", "iPhone 13"},
	"35699410": {"Apple", "iPhone 12 Pro"},
	"35332811": {"Apple", "iPhone 11"},
	"35503710": {"Samsung", "Galaxy S21"},
	"35226005": {"Samsung", "Galaxy S10"},
	"86723604": {"Xiaomi", "Redmi Note 10"},
	"86178505": {"Huawei", "P30 Lite"},
	"35825005": {"Google", "Pixel 6"},
}

// Service resolves IMEI lookups and keeps results for a bounded time.
type Service struct {
	results *cache.Cache
	nextID  atomic.Int64
}

// NewService creates a lookup service whose results expire after ttl.
func NewService(ttl time.Duration) *Service {
	return &Service{
		results: cache.New(ttl, 2*ttl),
	}
}

// Lookup resolves the IMEI and stores the result under a fresh history id.
// IMEIs shorter than 8 digits or containing non-digits are rejected;
// anything else produces a result, with Valid reflecting the Luhn check.
func (s *Service) Lookup(imei string) (*Receipt, error) {
	if len(imei) < 8 || !digitsOnly(imei) {
		return nil, fmt.Errorf("imei %q: %w", imei, ErrMalformed)
	}

	result := Result{
		IMEI:  imei,
		Brand: "Unknown",
		Model: "Unknown",
		Valid: Valid(imei),
	}
	if entry, ok := tacTable[imei[:8]]; ok {
		result.Brand = entry.brand
		result.Model = entry.model
	}

	id := s.nextID.Add(1)
	s.results.Set(strconv.FormatInt(id, 10), result, cache.DefaultExpiration)

	return &Receipt{
		HistoryID: id,
		Message:   "lookup complete",
	}, nil
}

// Result returns the stored lookup outcome for a history id.
func (s *Service) Result(historyID int64) (*Result, error) {
	v, found := s.results.Get(strconv.FormatInt(historyID, 10))
	if !found {
		return nil, fmt.Errorf("history id %d: %w", historyID, ErrResultNotFound)
	}
	result := v.(Result)
	return &result, nil
}

// Valid reports whether the IMEI is a well-formed 15-digit number with a
// correct Luhn check digit.
func Valid(imei string) bool {
	if len(imei) != 15 || !digitsOnly(imei) {
		return false
	}
	sum := 0
	for i, r := range imei {
		d := int(r - '0')
		// Double every second digit counting from the left, position 1-based.
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
