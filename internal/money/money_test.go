package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumTiyinRoundTrip(t *testing.T) {
	// minorUnits(majorUnits(x)) == x for minor amounts divisible by 100.
	for _, tiyin := range []int64{0, 100, 500, 11200000, 5000000, 9999999900} {
		a := Amount(tiyin)
		assert.Equal(t, a, FromSum(a.Sum()), "tiyin=%d", tiyin)
	}
}

func TestFromSum(t *testing.T) {
	assert.Equal(t, Amount(5000000), FromSum(50000))
	assert.Equal(t, int64(50000), FromSum(50000).Sum())
}

func TestMul(t *testing.T) {
	assert.Equal(t, Amount(10000000), FromSum(50000).Mul(2))
	assert.Equal(t, Amount(0), FromSum(50000).Mul(0))
}

func TestParseSum(t *testing.T) {
	a, err := ParseSum(" 50000 ")
	require.NoError(t, err)
	assert.Equal(t, FromSum(50000), a)

	for _, bad := range []string{"", "abc", "12.5", "-3", "0"} {
		_, err := ParseSum(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseAmount(t *testing.T) {
	for input, want := range map[string]Amount{
		"100000":    FromSum(100000),
		"100000.00": FromSum(100000),
		"123.45":    12345,
		"0":         0,
	} {
		a, err := ParseAmount(input)
		require.NoError(t, err, "input %q", input)
		assert.Equal(t, want, a, "input %q", input)
	}

	_, err := ParseAmount("-5")
	assert.Error(t, err)
	_, err = ParseAmount("x")
	assert.Error(t, err)
}

func TestFormatSum(t *testing.T) {
	assert.Equal(t, "50000", FromSum(50000).FormatSum())
	assert.Equal(t, "123.45", Amount(12345).FormatSum())
}
