package json

// RemoveFields removes fields from live that are not present in config. Extra list items of live are kept so that
// they show up in a diff.
func RemoveFields(config, live map[string]interface{}) map[string]interface{} {
	return removeMapFields(config, live)
}

func removeFields(config, live interface{}) interface{} {
	switch c := config.(type) {
	case map[string]interface{}:
		l, ok := live.(map[string]interface{})
		if ok {
			return removeMapFields(c, l)
		}
		return live
	case []interface{}:
		l, ok := live.([]interface{})
		if ok {
			return removeListFields(c, l)
		}
		return live
	default:
		return live
	}
}

func removeMapFields(config, live map[string]interface{}) map[string]interface{} {
	result := map[string]interface{}{}
	for k, v1 := range config {
		v2, ok := live[k]
		if !ok {
			continue
		}
		if v2 != nil {
			v2 = removeFields(v1, v2)
		}
		result[k] = v2
	}
	return result
}

func removeListFields(config, live []interface{}) []interface{} {
	result := make([]interface{}, 0, len(live))
	for i, v2 := range live {
		if len(config) > i && v2 != nil {
			v2 = removeFields(config[i], v2)
		}
		result = append(result, v2)
	}
	return result
}
