package workorder

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPrice(t *testing.T) {
	catalog := Catalog{"s1": d("45.00"), "s2": d("19.99"), "s3": d("0")}

	tests := []struct {
		name      string
		lines     []LineInput
		wantTotal string
		wantErr   error
	}{
		{name: "single line", lines: []LineInput{{"s1", 2}}, wantTotal: "90.00"},
		{name: "mixed", lines: []LineInput{{"s1", 1}, {"s2", 3}}, wantTotal: "104.97"},
		{name: "free service", lines: []LineInput{{"s3", 5}}, wantTotal: "0.00"},
		{name: "same service twice", lines: []LineInput{{"s2", 1}, {"s2", 1}}, wantTotal: "39.98"},
		{name: "empty", lines: nil, wantErr: ErrValidation},
		{name: "zero quantity", lines: []LineInput{{"s1", 0}}, wantErr: ErrValidation},
		{name: "negative quantity", lines: []LineInput{{"s1", -2}}, wantErr: ErrValidation},
		{name: "blank service", lines: []LineInput{{"", 1}}, wantErr: ErrValidation},
		{name: "unknown service", lines: []LineInput{{"nope", 1}}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, total, err := Price(tt.lines, catalog)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total.StringFixed(2))
			assert.Len(t, lines, len(tt.lines))

			sum := decimal.Zero
			for i, l := range lines {
				assert.True(t, l.TotalPrice.Equal(l.UnitPrice.Mul(decimal.NewFromInt(int64(tt.lines[i].Quantity)))))
				sum = sum.Add(l.TotalPrice)
			}
			assert.True(t, sum.Equal(total))
		})
	}
}

func TestPrice_NegativeCatalogPrice(t *testing.T) {
	_, _, err := Price([]LineInput{{"s1", 1}}, Catalog{"s1": d("-1")})
	assert.ErrorIs(t, err, ErrValidation)
}
