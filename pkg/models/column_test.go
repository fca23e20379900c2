package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColumnMeta_Equal(t *testing.T) {
	base := ColumnMeta{Unit: "SM3/DAY", IsRate: true, Keyword: "WOPR", WGName: "OP_1"}

	assert.True(t, base.Equal(base))
	assert.False(t, base.Equal(ColumnMeta{Unit: "SM3", IsRate: true, Keyword: "WOPR", WGName: "OP_1"}))
	assert.False(t, base.Equal(base.WithNum(1)))
	assert.True(t, base.WithNum(3).Equal(base.WithNum(3)))
	assert.False(t, base.WithNum(3).Equal(base.WithNum(4)))
}

func TestColumnMeta_JSONOmitsMissingNum(t *testing.T) {
	data, err := json.Marshal(ColumnMeta{Unit: "BARSA", Keyword: "FPR"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit":"BARSA","is_total":false,"is_rate":false,"is_historical":false,"keyword":"FPR","wgname":""}`, string(data))

	data, err = json.Marshal(ColumnMeta{Keyword: "RPR"}.WithNum(2))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"get_num":2`)
}
