package logging

import "sort"

func logParamsToZapParams(keys map[ExtraKey]any) []any {
	params := make([]any, 0, len(keys)*2)

	// Stable field order keeps console output readable.
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, string(k))
	}
	sort.Strings(names)

	for _, k := range names {
		params = append(params, k, keys[ExtraKey(k)])
	}

	return params
}
