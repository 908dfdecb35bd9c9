package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

func TestLedgerStateSerialization(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		state := &LedgerState{
			TopHash:   types.Digest{1, 2, 3}.Hex(),
			LeafCount: 7,
			UpdatedAt: 1700000000000,
		}

		data, err := MarshalLedgerState(state)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"topHash"`)

		loaded, err := UnmarshalLedgerState(data)
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})

	t.Run("NilState", func(t *testing.T) {
		_, err := MarshalLedgerState(nil)
		require.Error(t, err)
	})

	t.Run("EmptyData", func(t *testing.T) {
		_, err := UnmarshalLedgerState(nil)
		require.Error(t, err)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		_, err := UnmarshalLedgerState([]byte("{not json"))
		require.Error(t, err)
	})
}

func TestSortFileIDs(t *testing.T) {
	ids := []types.FileID{{0xff}, {0x00, 0x02}, {0x80}, {0x00, 0x01}}
	SortFileIDs(ids)
	assert.Equal(t, []types.FileID{{0x00, 0x01}, {0x00, 0x02}, {0x80}, {0xff}}, ids)
}
