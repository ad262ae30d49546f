package domain

import (
	"dario.cat/mergo"
	json "github.com/goccy/go-json"
)

// MergeNodeData applies a partial JSON patch to a node's data, the way the
// editing session updates nodes: fields present in the patch override the
// current value, everything else is preserved. Slices are replaced, not
// appended, so re-running a node swaps its outputs rather than growing them.
func MergeNodeData(current NodeData, patch json.RawMessage) (NodeData, error) {
	if len(patch) == 0 {
		return current, nil
	}

	currentRaw, err := json.Marshal(current)
	if err != nil {
		return current, err
	}

	var currentMap, patchMap map[string]interface{}
	if err := json.Unmarshal(currentRaw, &currentMap); err != nil {
		return current, err
	}
	if err := json.Unmarshal(patch, &patchMap); err != nil {
		return current, err
	}

	if err := mergo.Merge(&currentMap, patchMap, mergo.WithOverride); err != nil {
		return current, err
	}

	mergedRaw, err := json.Marshal(currentMap)
	if err != nil {
		return current, err
	}

	var merged NodeData
	if err := json.Unmarshal(mergedRaw, &merged); err != nil {
		return current, err
	}
	return merged, nil
}
