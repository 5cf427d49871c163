package sampler_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attr-sampler/pkg/mbean"
	"github.com/attr-sampler/pkg/objectname"
	"github.com/attr-sampler/pkg/sampler"
)

func TestActivitySnapshots(t *testing.T) {
	a := sampler.NewActivity("cycle")
	require.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), sampler.NewActivity("cycle").ID())

	a.AddSnapshot(sampler.NewSnapshot("app", "empty"))
	a.AddSnapshot(nil)
	assert.Empty(t, a.Snapshots())

	snap := sampler.NewSnapshot("app", "app:type=A")
	snap.Add("V", 1)
	snap.Add("W", "x")
	snap.Add("V", 2)
	a.AddSnapshot(snap)

	require.Len(t, a.Snapshots(), 1)
	assert.Equal(t, []sampler.Property{{Key: "V", Value: 2}, {Key: "W", Value: "x"}}, snap.Properties())

	a.Stop()
	elapsed := a.Elapsed()
	a.Stop()
	assert.Equal(t, elapsed, a.Elapsed())

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var decoded struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Snapshots []struct {
			Name       string `json:"name"`
			Properties []struct {
				Key string `json:"key"`
			} `json:"properties"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, a.ID(), decoded.ID)
	assert.Equal(t, "cycle", decoded.Name)
	require.Len(t, decoded.Snapshots, 1)
	assert.Equal(t, "app:type=A", decoded.Snapshots[0].Name)
	assert.Len(t, decoded.Snapshots[0].Properties, 2)
}

func TestRegistryEntriesSorted(t *testing.T) {
	r := sampler.NewRegistry()
	b := objectname.MustParse("app:type=B")
	a := objectname.MustParse("app:type=A")
	r.Put(b, []mbean.AttributeInfo{{Name: "X", Readable: true}})
	r.Put(a, nil)

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, a, entries[0].Name)
	assert.Equal(t, b, entries[1].Name)

	attrs, ok := r.Get(b)
	require.True(t, ok)
	attrs[0].Name = "mutated"
	again, _ := r.Get(b)
	assert.Equal(t, "X", again[0].Name)

	assert.True(t, r.Remove(a))
	assert.False(t, r.Remove(a))
	assert.Equal(t, 1, r.Len())
}

func TestStatsProperties(t *testing.T) {
	st := sampler.Stats{SampleCount: 3, ObjectCount: 2}
	props := st.Properties()
	require.Len(t, props, 11)
	assert.Equal(t, sampler.StatNoopCount, props[0].Key)
	assert.Equal(t, sampler.StatSampleCount, props[1].Key)
	assert.Equal(t, int64(3), props[1].Value)
	assert.Equal(t, sampler.StatSampleTimeUsec, props[10].Key)
}
