package kanban

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vocautobot/vockanban/internal/voc"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		status voc.Status
		want   Column
	}{
		{voc.StatusNew, ColumnNew},
		{voc.StatusInProgress, ColumnInProgress},
		{voc.StatusPending, ColumnPending},
		{voc.StatusResolved, ColumnResolved},
		{voc.StatusClosed, ColumnClosed},
		{voc.StatusRejected, ColumnClosed},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status))
		})
	}
}

func TestClassify_PanicsOnUnknownStatus(t *testing.T) {
	assert.Panics(t, func() { Classify(voc.Status("ARCHIVED")) })
}

func TestCanonicalStatus(t *testing.T) {
	s, ok := CanonicalStatus(ColumnClosed)
	require.True(t, ok)
	assert.Equal(t, voc.StatusRejected, s)

	_, ok = CanonicalStatus(Column("DONE"))
	assert.False(t, ok)
}

func TestParseColumn(t *testing.T) {
	for _, c := range Columns {
		got, err := ParseColumn(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseColumn("REJECTED")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}
