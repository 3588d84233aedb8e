package task

// DeepMerge recursively merges delta into base: nested maps recurse, lists
// and scalars are replaced wholesale, and delta wins on any conflicting
// scalar key (§4.10, invariant 6). Neither argument is mutated; the result
// is a new map.
func DeepMerge(base, delta map[string]interface{}) map[string]interface{} {
	if base == nil && delta == nil {
		return nil
	}

	out := make(map[string]interface{}, len(base)+len(delta))
	for k, v := range base {
		out[k] = v
	}

	for k, dv := range delta {
		bv, exists := out[k]
		if !exists {
			out[k] = dv
			continue
		}
		bMap, bOK := bv.(map[string]interface{})
		dMap, dOK := dv.(map[string]interface{})
		if bOK && dOK {
			out[k] = DeepMerge(bMap, dMap)
			continue
		}
		out[k] = dv
	}

	return out
}

// ApplyReplaceFields overlays a patch onto base, honoring §4.10's
// replace_fields contract: fields named in replaceFields overwrite
// wholesale; every other field present in patch is deep-merged.
func ApplyReplaceFields(base, patch map[string]interface{}, replaceFields []string) map[string]interface{} {
	replace := make(map[string]bool, len(replaceFields))
	for _, f := range replaceFields {
		replace[f] = true
	}

	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}

	for k, pv := range patch {
		if replace[k] {
			out[k] = pv
			continue
		}
		bv, exists := out[k]
		if !exists {
			out[k] = pv
			continue
		}
		bMap, bOK := bv.(map[string]interface{})
		pMap, pOK := pv.(map[string]interface{})
		if bOK && pOK {
			out[k] = DeepMerge(bMap, pMap)
			continue
		}
		out[k] = pv
	}

	return out
}
