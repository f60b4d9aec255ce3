package at_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"i4.energy/across/sim800gw/at"
)

func TestScan(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		pattern string
		ok      bool
		want    at.Fields
	}{
		{
			name:    "registration state",
			line:    "+CREG: 0,5",
			pattern: at.PatRegistration,
			ok:      true,
			want:    at.Fields{int64(5)},
		},
		{
			name:    "http get status and length",
			line:    "+HTTPACTION: 0,200,2500",
			pattern: at.PatHTTPGet,
			ok:      true,
			want:    at.Fields{int64(200), int64(2500)},
		},
		{
			name:    "http post line does not satisfy get pattern",
			line:    "+HTTPACTION: 1,200,12",
			pattern: at.PatHTTPGet,
		},
		{
			name:    "partial match fails",
			line:    "+HTTPACTION: 0,601",
			pattern: at.PatHTTPGet,
		},
		{
			name:    "three values with a skipped connection id",
			line:    "+CIPRXGET: 2,0,128,64",
			pattern: at.PatReceive,
			ok:      true,
			want:    at.Fields{int64(0), int64(128), int64(64)},
		},
		{
			name:    "clock with widths",
			line:    `+CCLK: "24/03/17,09:41:07+04"`,
			pattern: at.PatClock,
			ok:      true,
			want:    at.Fields{"24/03/17", "09:41:07", "+04"},
		},
		{
			name:    "single word",
			line:    "10.64.12.7",
			pattern: at.PatWord,
			ok:      true,
			want:    at.Fields{"10.64.12.7"},
		},
		{
			name:    "literal mismatch",
			line:    "OK",
			pattern: at.PatAccepted,
		},
		{
			name:    "pattern without placeholders",
			line:    "DOWNLOAD",
			pattern: "DOWNLOAD",
			ok:      true,
			want:    at.Fields{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields, ok, err := at.Scan(tt.line, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, fields)
			}
		})
	}
}

func TestScanBadPattern(t *testing.T) {
	_, ok, err := at.Scan("+CSQ: 15,99", "+CSQ: %f,%d")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, at.ErrBadPattern))

	_, _, err = at.Scan("x", "trailing %")
	assert.True(t, errors.Is(err, at.ErrBadPattern))
}

func TestFieldsAccessors(t *testing.T) {
	f := at.Fields{int64(200), "READY"}

	assert.Equal(t, 200, f.Int(0))
	assert.Equal(t, int64(200), f.Int64(0))
	assert.Equal(t, "READY", f.String(1))

	// Wrong type and out of range fall back to zero values.
	assert.Equal(t, 0, f.Int(1))
	assert.Equal(t, "", f.String(0))
	assert.Equal(t, 0, f.Int(5))
	assert.Equal(t, "", f.String(-1))
}
