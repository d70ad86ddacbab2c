package prometheus

const Namespace = "exporter.prometheus"

const DefaultListenAddress = ":9090"

type Config struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}
