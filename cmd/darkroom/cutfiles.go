package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/Comcast/darkroom/cut"
	"github.com/Comcast/darkroom/dmerror"
)

// loadCutSources reads each path as a merge source: JSON files decode
// directly, .yaml/.yml files decode via yaml.v2 into a JSON-compatible
// map before merging, per SPEC_FULL.md §10.
func loadCutSources(paths []string) ([]map[string]interface{}, error) {
	var sources []map[string]interface{}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, dmerror.Wrap(dmerror.KindRegisterParse, fmt.Sprintf("reading cut file %s", p), err)
		}

		var m map[string]interface{}
		if strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".yml") {
			var raw map[interface{}]interface{}
			if err := yaml.Unmarshal(data, &raw); err != nil {
				return nil, dmerror.Wrap(dmerror.KindRegisterParse, fmt.Sprintf("parsing %s", p), err)
			}
			m = toJSONCompatible(raw)
		} else {
			dec := json.NewDecoder(strings.NewReader(string(data)))
			dec.UseNumber()
			if err := dec.Decode(&m); err != nil {
				return nil, dmerror.Wrap(dmerror.KindRegisterParse, fmt.Sprintf("parsing %s", p), err)
			}
		}
		sources = append(sources, m)
	}
	return sources, nil
}

// toJSONCompatible converts yaml.v2's map[interface{}]interface{} decode
// result into map[string]interface{} recursively, so it merges into a
// cut.Register exactly as a JSON merge source would.
func toJSONCompatible(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", k)] = toJSONCompatibleValue(vv)
		}
		return out
	case map[string]interface{}:
		return t
	default:
		return nil
	}
}

func toJSONCompatibleValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		return toJSONCompatible(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = toJSONCompatibleValue(vv)
		}
		return out
	default:
		return t
	}
}

// buildRegister merges the base cut (if any) with positional merge
// sources, in the order a Reel or VirtualReel declares them.
func buildRegister(base map[string]interface{}, mergePaths []string) (*cut.Register, error) {
	sources, err := loadCutSources(mergePaths)
	if err != nil {
		return nil, err
	}
	all := append([]map[string]interface{}{}, base)
	all = append(all, sources...)
	return cut.Merge(all...)
}
