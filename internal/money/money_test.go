package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr error
	}{
		{in: "150", want: 15000},
		{in: "150.00", want: 15000},
		{in: "150.5", want: 15050},
		{in: "0.01", want: 1},
		{in: "-2.50", want: -250},
		{in: "10.001", wantErr: ErrTooPrecise},
		{in: "100000000000000000000", wantErr: ErrOverflow},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := Parse(tc.in)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	_, err := Parse("twelve")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "150.00", Format(15000))
	require.Equal(t, "0.05", Format(5))
	require.Equal(t, "0.00", Format(0))
	require.Equal(t, "1234.56", Format(123456))
}
