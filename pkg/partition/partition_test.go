package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroValueIsDefault(t *testing.T) {
	var db DB
	assert.True(t, db.IsDefault())
	assert.Equal(t, Default, db)
	assert.Equal(t, 7, db.Resolve(7))
}

func TestNew(t *testing.T) {
	for i := 0; i < Count; i++ {
		db, err := New(i)
		require.NoError(t, err)
		n, ok := db.Index()
		assert.True(t, ok)
		assert.Equal(t, i, n)
		assert.Equal(t, i, db.Resolve(3))
	}

	_, err := New(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = New(Count)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    DB
		wantErr bool
	}{
		{in: "default", want: Default},
		{in: "", want: Default},
		{in: "0", want: DB0},
		{in: "db9", want: DB9},
		{in: "Db15", want: DB15},
		{in: " 4 ", want: DB4},
		{in: "16", wantErr: true},
		{in: "db-1", wantErr: true},
		{in: "primary", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "default", Default.Name())
	assert.Equal(t, "db0", DB0.Name())
	assert.Equal(t, "db12", DB12.String())
	assert.Equal(t, "db3", NameOf(3))

	all := All()
	require.Len(t, all, Count)
	for i, db := range all {
		assert.Equal(t, NameOf(i), db.Name())
	}
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(42) })
	assert.Equal(t, DB5, MustNew(5))
}
