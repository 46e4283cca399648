package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/tsamsiyu/k8schema/internal/schema"
)

func readDocument(t *testing.T, d Document) []byte {
	t.Helper()
	b, err := io.ReadAll(d.Reader())
	require.NoError(t, err)
	return b
}

func parseSet(t *testing.T, doc string) *schema.Set {
	t.Helper()
	set := schema.NewSet()
	require.NoError(t, json.Unmarshal([]byte(doc), set))
	return set
}

const podSet = `{
	"io.k8s.api.core.v1.Pod": {
		"type": "object",
		"properties": {
			"apiVersion": {"type": "string"},
			"kind": {"type": "string"},
			"spec": {"allOf": [{"$ref": "#/components/schemas/io.k8s.api.core.v1.PodSpec"}]}
		},
		"x-kubernetes-group-version-kind": [{"group": "", "kind": "Pod", "version": "v1"}]
	},
	"io.k8s.api.core.v1.PodSpec": {
		"type": "object",
		"properties": {"restartPolicy": {"type": "string", "enum": ["Always", "Never"]}}
	}
}`

func TestStore_InitiallyEmpty(t *testing.T) {
	store := NewStore(zap.NewNop())

	snap := store.Snapshot()
	assert.Equal(t, uint64(0), snap.Generation())
	assert.True(t, snap.RefreshedAt().IsZero())
	assert.Empty(t, store.Paths())
	assert.Equal(t, 0, store.Schemas().Len())
	assert.Equal(t, `{"oneOf":[]}`, string(readDocument(t, snap.Index())))
	assert.Equal(t, `{"definitions":{}}`, string(readDocument(t, snap.Definitions())))
}

func TestStore_ReplaceInstallsNewSnapshot(t *testing.T) {
	store := NewStore(zap.NewNop())
	before := store.Snapshot()

	require.NoError(t, store.Replace(parseSet(t, podSet)))

	snap := store.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation())
	assert.False(t, snap.RefreshedAt().IsZero())
	assert.Empty(t, cmp.Diff([]string{"io.k8s.api.core.v1.Pod", "io.k8s.api.core.v1.PodSpec"}, store.Paths()))
	assert.Equal(t,
		`{"oneOf":[{"$ref":"_definitions.json#definitions/io.k8s.api.core.v1.Pod"},{"$ref":"_definitions.json#definitions/io.k8s.api.core.v1.PodSpec"}]}`,
		string(readDocument(t, snap.Index())))
	assert.NotEqual(t, before.Index().ETag(), snap.Index().ETag())
	assert.NotEqual(t, before.Definitions().ETag(), snap.Definitions().ETag())

	// The previous snapshot is untouched.
	assert.Equal(t, uint64(0), before.Generation())
	assert.Equal(t, 0, before.Len())

	require.NoError(t, store.Replace(schema.NewSet()))
	assert.Equal(t, uint64(2), store.Snapshot().Generation())
	assert.Empty(t, store.Paths())
}

func TestStore_IndexAndDefinitionsAreConsistent(t *testing.T) {
	store := NewStore(zap.NewNop())
	require.NoError(t, store.Replace(parseSet(t, podSet)))
	snap := store.Snapshot()

	var index struct {
		OneOf []struct {
			Ref string `json:"$ref"`
		} `json:"oneOf"`
	}
	require.NoError(t, json.Unmarshal(readDocument(t, snap.Index()), &index))

	var definitions struct {
		Definitions map[string]json.RawMessage `json:"definitions"`
	}
	require.NoError(t, json.Unmarshal(readDocument(t, snap.Definitions()), &definitions))

	require.Len(t, index.OneOf, len(definitions.Definitions))
	for _, ref := range index.OneOf {
		require.True(t, strings.HasPrefix(ref.Ref, IndexRefPrefix), ref.Ref)
		assert.Contains(t, definitions.Definitions, strings.TrimPrefix(ref.Ref, IndexRefPrefix))
	}
}

func TestStore_DefinitionFollowsReplace(t *testing.T) {
	store := NewStore(zap.NewNop())

	_, ok := store.Definition("io.k8s.api.core.v1.Pod")
	assert.False(t, ok)

	require.NoError(t, store.Replace(parseSet(t, podSet)))

	def, ok := store.Definition("io.k8s.api.core.v1.Pod")
	require.True(t, ok)
	want, _ := store.Schemas().Get("io.k8s.api.core.v1.Pod")
	wantJSON, err := json.Marshal(want)
	require.NoError(t, err)
	gotJSON, err := json.Marshal(def)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantJSON), string(gotJSON))

	_, ok = store.Definition("io.k8s.api.core.v1.Missing")
	assert.False(t, ok)

	require.NoError(t, store.Replace(schema.NewSet()))
	_, ok = store.Definition("io.k8s.api.core.v1.Pod")
	assert.False(t, ok)
}

func TestStore_CallersCannotMutateState(t *testing.T) {
	store := NewStore(zap.NewNop())
	input := parseSet(t, podSet)
	require.NoError(t, store.Replace(input))
	want := string(readDocument(t, store.Snapshot().Definitions()))

	input.Put("io.k8s.api.core.v1.Injected", schema.String("x"))

	schemas := store.Schemas()
	schemas.Put("io.k8s.api.core.v1.Other", schema.String("y"))
	pod, _ := schemas.Get("io.k8s.api.core.v1.Pod")
	obj, _ := pod.AsObject()
	obj.Delete("properties")

	paths := store.Paths()
	paths[0] = "changed"

	def, ok := store.Definition("io.k8s.api.core.v1.PodSpec")
	require.True(t, ok)
	specObj, _ := def.AsObject()
	specObj.Set("type", schema.String("string"))

	assert.Equal(t, 2, store.Schemas().Len())
	assert.Equal(t, "io.k8s.api.core.v1.Pod", store.Paths()[0])
	assert.JSONEq(t, want, string(readDocument(t, store.Snapshot().Definitions())))

	rendered, err := json.Marshal(store.Schemas())
	require.NoError(t, err)
	assert.JSONEq(t, podSet, string(rendered))
}

func TestStore_ReadersNeverObserveMixedSets(t *testing.T) {
	const (
		markers    = 8
		perMarker  = 25
		readers    = 16
		iterations = 200
	)

	sets := make([]*schema.Set, markers)
	for i := range sets {
		set := schema.NewSet()
		for j := 0; j < perMarker; j++ {
			def := schema.NewObject()
			def.Set("description", schema.String(fmt.Sprintf("marker-%d", i)))
			set.Put(fmt.Sprintf("marker-%d.def-%d", i, j), schema.ObjectValue(def))
		}
		sets[i] = set
	}

	store := NewStore(zap.NewNop())
	require.NoError(t, store.Replace(sets[0]))

	var wg sync.WaitGroup
	errs := make(chan error, readers+1)

	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				if err := checkSingleMarker(store.Schemas(), perMarker); err != nil {
					errs <- err
					return
				}
				if err := checkSnapshotNames(store.Snapshot(), perMarker); err != nil {
					errs <- err
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			if err := store.Replace(sets[i%markers]); err != nil {
				errs <- err
				return
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func checkSingleMarker(set *schema.Set, size int) error {
	if set.Len() != size {
		return fmt.Errorf("snapshot has %d definitions, want %d", set.Len(), size)
	}
	var marker string
	for _, name := range set.Names() {
		prefix, _, _ := strings.Cut(name, ".")
		if marker == "" {
			marker = prefix
		}
		if prefix != marker {
			return fmt.Errorf("snapshot mixes %s and %s", marker, prefix)
		}
		def, _ := set.Get(name)
		obj, _ := def.AsObject()
		if desc, _ := obj.GetString("description"); desc != marker {
			return fmt.Errorf("definition %s carries %s", name, desc)
		}
	}
	return nil
}

func checkSnapshotNames(snap *Snapshot, size int) error {
	var index indexDocument
	b, err := io.ReadAll(snap.Index().Reader())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, &index); err != nil {
		return err
	}
	if len(index.OneOf) != size || snap.Len() != size {
		return fmt.Errorf("index has %d entries, snapshot %d, want %d", len(index.OneOf), snap.Len(), size)
	}
	names := snap.Names()
	for i, ref := range index.OneOf {
		if ref.Ref != IndexRefPrefix+names[i] {
			return fmt.Errorf("index entry %s does not match name %s", ref.Ref, names[i])
		}
	}
	return nil
}

func TestStore_DefinitionsLoadAsJSONSchema(t *testing.T) {
	set := parseSet(t, podSet)
	set.Normalize()

	store := NewStore(zap.NewNop())
	require.NoError(t, store.Replace(set))

	var root map[string]any
	require.NoError(t, json.Unmarshal(readDocument(t, store.Snapshot().Definitions()), &root))
	root["$ref"] = "#/definitions/io.k8s.api.core.v1.Pod"

	podSchema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(root))
	require.NoError(t, err)

	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{name: "valid pod", doc: `{"apiVersion":"v1","kind":"Pod","spec":{"restartPolicy":"Never"}}`, valid: true},
		{name: "wrong kind", doc: `{"apiVersion":"v1","kind":"Deployment"}`},
		{name: "wrong apiVersion", doc: `{"apiVersion":"apps/v1","kind":"Pod"}`},
		{name: "unknown field", doc: `{"apiVersion":"v1","kind":"Pod","status":{}}`},
		{name: "bad enum in referenced schema", doc: `{"kind":"Pod","spec":{"restartPolicy":"Sometimes"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := podSchema.Validate(gojsonschema.NewStringLoader(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid(), "%v", result.Errors())
		})
	}
}
