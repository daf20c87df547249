package results

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionMarshalKeepsInsertionOrder(t *testing.T) {
	c := NewCollection()
	c.Add(GroupKey{Method: "zeta", Version: VersionV1}, Record{StatusCode: 200, RequestBody: json.RawMessage(`{"b":1,"a":2}`), ResponseBody: json.RawMessage(`{}`)})
	c.Add(GroupKey{Method: "alpha", Version: VersionV2}, Record{StatusCode: 201, RequestBody: json.RawMessage(`{}`), ResponseBody: json.RawMessage(`"<ok>"`)})
	c.Add(GroupKey{Method: "zeta", Version: VersionV1}, Record{StatusCode: 202, RequestBody: json.RawMessage(`{}`), ResponseBody: json.RawMessage(`{}`)})

	out, err := c.MarshalJSON()
	require.NoError(t, err)
	require.True(t, json.Valid(out))
	text := string(out)

	assert.Less(t, strings.Index(text, `"zeta (v1)"`), strings.Index(text, `"alpha (v2)"`))
	assert.Contains(t, text, `{"b":1,"a":2}`, "nested key order should be preserved")
	assert.Contains(t, text, `"<ok>"`, "html characters should not be escaped")
	assert.Contains(t, text, `"count":2`)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, c.Total())
}

func TestEmptyCollectionMarshal(t *testing.T) {
	out, err := json.Marshal(NewCollection())
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))
}

func TestGroupCountMatchesDetails(t *testing.T) {
	g := &Group{}
	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"details":[],"count":0}`, string(out))

	g.add(Record{StatusCode: 200, RequestBody: json.RawMessage(`{}`), ResponseBody: json.RawMessage(`{}`)})
	details := g.Details()
	details[0].StatusCode = 999
	assert.Equal(t, 200, g.Details()[0].StatusCode, "Details should return a copy")
	assert.Equal(t, 1, g.Count())
}
