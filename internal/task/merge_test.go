package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMergeScalarOverwrite(t *testing.T) {
	base := map[string]interface{}{"a": 1, "b": 2}
	delta := map[string]interface{}{"b": 3}

	out := DeepMerge(base, delta)

	assert.Equal(t, 1, out["a"])
	assert.Equal(t, 3, out["b"])
}

func TestDeepMergeRecursesNestedMaps(t *testing.T) {
	base := map[string]interface{}{
		"nested": map[string]interface{}{"x": 1, "y": 2},
	}
	delta := map[string]interface{}{
		"nested": map[string]interface{}{"y": 20, "z": 3},
	}

	out := DeepMerge(base, delta)
	nested := out["nested"].(map[string]interface{})

	assert.Equal(t, 1, nested["x"])
	assert.Equal(t, 20, nested["y"])
	assert.Equal(t, 3, nested["z"])
}

func TestDeepMergeListReplacement(t *testing.T) {
	base := map[string]interface{}{"items": []interface{}{1, 2, 3}}
	delta := map[string]interface{}{"items": []interface{}{9}}

	out := DeepMerge(base, delta)

	assert.Equal(t, []interface{}{9}, out["items"])
}

func TestDeepMergeDoesNotMutateInputs(t *testing.T) {
	base := map[string]interface{}{"a": 1}
	delta := map[string]interface{}{"a": 2}

	DeepMerge(base, delta)

	assert.Equal(t, 1, base["a"])
	assert.Equal(t, 2, delta["a"])
}

func TestDeepMergeIsAssociativeOnConflictFreeMaps(t *testing.T) {
	a := map[string]interface{}{"x": 1}
	b := map[string]interface{}{"y": 2}
	c := map[string]interface{}{"z": 3}

	left := DeepMerge(DeepMerge(a, b), c)
	right := DeepMerge(a, DeepMerge(b, c))

	assert.Equal(t, left, right)
}

func TestApplyReplaceFieldsOverwritesNamedFields(t *testing.T) {
	base := map[string]interface{}{
		"args":     map[string]interface{}{"a": 1, "b": 2},
		"metadata": map[string]interface{}{"tag": "old"},
	}
	patch := map[string]interface{}{
		"args":     map[string]interface{}{"c": 3},
		"metadata": map[string]interface{}{"tag": "new"},
	}

	out := ApplyReplaceFields(base, patch, []string{"args"})

	assert.Equal(t, map[string]interface{}{"c": 3}, out["args"])
	assert.Equal(t, "new", out["metadata"].(map[string]interface{})["tag"])
}
