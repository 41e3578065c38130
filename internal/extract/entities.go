package extract

// EntityMapping resolves dataset entity names to pattern table types
type EntityMapping map[string]string

// DefaultEntityMapping covers the catalog entity names the pipeline was
// built for
func DefaultEntityMapping() EntityMapping {
	return EntityMapping{
		"item_weight":               "weight",
		"item_volume":               "volume",
		"max_weight_recommendation": "max_weight",
		"height":                    "height",
		"width":                     "width",
		"voltage":                   "voltage",
		"wattage":                   "wattage",
		"depth":                     "depth",
	}
}

// Resolve maps an entity name to its parameter type. Unmapped names pass
// through unchanged so new entities can be probed without a mapping change.
func (m EntityMapping) Resolve(entity string) string {
	if paramType, ok := m[entity]; ok {
		return paramType
	}
	return entity
}
