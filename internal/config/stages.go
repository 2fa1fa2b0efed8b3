package config

import "assetmanifest/internal/manifest"

// StageSet maps configuration names to pipeline stages. A nil entry means
// the pipeline default.
type StageSet struct {
	Filters map[string]manifest.FilterFunc
	Sorts   map[string]manifest.SortFunc
	Reduces map[string]manifest.ReduceFunc
	Formats map[string]manifest.Serializer
}

// Stages holds the named stages configuration files may refer to.
var Stages = StageSet{
	Filters: map[string]manifest.FilterFunc{
		"all":     nil,
		"initial": manifest.FilterInitial,
		"chunks":  manifest.FilterChunks,
	},
	Sorts: map[string]manifest.SortFunc{
		"none":    nil,
		"key":     manifest.SortByKey,
		"reverse": manifest.SortReverse,
	},
	Reduces: map[string]manifest.ReduceFunc{
		"object":   nil,
		"list":     manifest.ReduceList,
		"detailed": manifest.ReduceDetailed,
	},
	Formats: map[string]manifest.Serializer{
		"json": manifest.SerializeJSON,
		"cbor": manifest.SerializeCBOR,
	},
}
