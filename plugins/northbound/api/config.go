package api

import (
	"github.com/veesix-networks/tpc/pkg/component"
)

const Namespace = "northbound.api"

const DefaultListenAddress = ":8181"

type Config struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty"`
}

func init() {
	component.Register(Namespace, NewComponent)
}
