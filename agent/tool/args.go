package tool

import "fmt"

// JSON numbers decode as float64; tool handlers need int ids and counts.

func Int64Arg(args map[string]any, key string) (int64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	return coerceInt64(key, raw)
}

func Int64ArgDefault(args map[string]any, key string, def int64) (int64, error) {
	raw, ok := args[key]
	if !ok {
		return def, nil
	}
	return coerceInt64(key, raw)
}

func StringArg(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%s is required", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return s, nil
}

func coerceInt64(key string, raw any) (int64, error) {
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%s must be an integer", key)
	}
}
