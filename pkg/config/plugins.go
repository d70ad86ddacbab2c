package config

import "fmt"

// PluginConfig decodes the plugins.<namespace> block into a T. The bool is
// false when the block is absent.
func PluginConfig[T any](c *Config, namespace string) (*T, bool, error) {
	if c == nil {
		return nil, false, nil
	}

	node, ok := c.Plugins[namespace]
	if !ok {
		return nil, false, nil
	}

	var out T
	if err := node.Decode(&out); err != nil {
		return nil, true, fmt.Errorf("plugins.%s: %w", namespace, err)
	}

	return &out, true, nil
}
