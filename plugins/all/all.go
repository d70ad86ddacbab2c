// Package all links every built-in plugin into a binary.
package all

import (
	_ "github.com/veesix-networks/tpc/plugins/exporter/prometheus"
	_ "github.com/veesix-networks/tpc/plugins/northbound/api"
)
