package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBaseRoutesByType(t *testing.T) {
	b, err := json.Marshal(QueryMsg{Type: TypeQuery, ProtocolVersion: Version, ReqID: "Q1", Kind: QueryNearest})
	require.NoError(t, err)
	base, err := DecodeBase(b)
	require.NoError(t, err)
	require.Equal(t, TypeQuery, base.Type)
	require.Equal(t, Version, base.ProtocolVersion)

	_, err = DecodeBase([]byte("{"))
	require.Error(t, err)
}

func TestTaskReqOmitsUnsetStation(t *testing.T) {
	b, err := json.Marshal(TaskReq{ID: "T1", Type: TaskCraft, RecipeID: "stick", Count: 1})
	require.NoError(t, err)
	require.NotContains(t, string(b), "station")

	st := [3]int{1, 2, 3}
	b, err = json.Marshal(TaskReq{ID: "T2", Type: TaskCraft, RecipeID: "furnace", Count: 1, Station: &st})
	require.NoError(t, err)
	require.Contains(t, string(b), `"station":[1,2,3]`)
}
