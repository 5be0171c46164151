package executor

// Config helpers shared by node executors. Executors validate their own
// configuration; the engine never interprets node config beyond the
// variable name.

// VariableName returns the context key the node's output is merged under.
func VariableName(input Input, fallback string) string {
	if name, ok := input.Data["variable_name"].(string); ok && name != "" {
		return name
	}

	if fallback != "" {
		return fallback
	}

	return input.NodeID
}

// StringConfig reads a string field from node config, empty when absent.
func StringConfig(input Input, key string) string {
	value, _ := input.Data[key].(string)

	return value
}
