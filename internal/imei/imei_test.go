package imei

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// luhnPad appends the check digit that makes the 14-digit body pass the
// Luhn check, computed independently of the package under test.
func luhnPad(body string) string {
	sum := 0
	for i, r := range body {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	check := (10 - sum%10) % 10
	return body + string(rune('0'+check))
}

func TestValid(t *testing.T) {
	testCases := []struct {
		name  string
		imei  string
		valid bool
	}{
		{"known valid imei", "490154203237518", true},
		{"generated check digit", luhnPad("35328110123456"), true},
		{"wrong check digit", "490154203237519", false},
		{"too short", "49015420323751", false},
		{"too long", "4901542032375189", false},
		{"non-digits", "49015420323751x", false},
		{"empty", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.valid, Valid(tc.imei))
		})
	}
}

func TestServiceLookup(t *testing.T) {
	s := NewService(time.Minute)

	receipt, err := s.Lookup(luhnPad("35328110123456"))
	require.NoError(t, err)
	assert.Positive(t, receipt.HistoryID)
	assert.NotEmpty(t, receipt.Message)

	result, err := s.Result(receipt.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "Apple", result.Brand)
	assert.Equal(t, "iPhone 13", result.Model)
	assert.True(t, result.Valid)
}

func TestServiceLookupUnknownTAC(t *testing.T) {
	s := NewService(time.Minute)

	receipt, err := s.Lookup(luhnPad("99999999123456"))
	require.NoError(t, err)

	result, err := s.Result(receipt.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown", result.Brand)
	assert.Equal(t, "Unknown", result.Model)
	assert.True(t, result.Valid)
}

func TestServiceLookupInvalidLuhn(t *testing.T) {
	s := NewService(time.Minute)

	// A wrong check digit still resolves; only the Valid flag drops.
	good := luhnPad("35328110123456")
	bad := good[:14] + string(rune('0'+(int(good[14]-'0')+1)%10))
	receipt, err := s.Lookup(bad)
	require.NoError(t, err)

	result, err := s.Result(receipt.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "Apple", result.Brand)
	assert.False(t, result.Valid)
}

func TestServiceLookupMalformed(t *testing.T) {
	s := NewService(time.Minute)

	_, err := s.Lookup("1234567")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = s.Lookup("35328110abc")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = s.Lookup("")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestServiceLookupIDsAreDistinct(t *testing.T) {
	s := NewService(time.Minute)

	first, err := s.Lookup("490154203237518")
	require.NoError(t, err)
	second, err := s.Lookup("490154203237518")
	require.NoError(t, err)
	assert.NotEqual(t, first.HistoryID, second.HistoryID)
}

func TestServiceResultExpiry(t *testing.T) {
	s := NewService(20 * time.Millisecond)

	receipt, err := s.Lookup("490154203237518")
	require.NoError(t, err)

	_, err = s.Result(receipt.HistoryID)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	_, err = s.Result(receipt.HistoryID)
	assert.ErrorIs(t, err, ErrResultNotFound)

	_, err = s.Result(999)
	assert.ErrorIs(t, err, ErrResultNotFound)
}
