package api

type Status struct {
	State         string `json:"state"`
	ListenAddress string `json:"listen_address"`
	Running       bool   `json:"running"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Row types document request bodies. Bodies are decoded by the northbound
// package, not through these structs.

type AttackRow struct {
	DeviceID            string `json:"deviceId" description:"Device identifier, e.g. device:leaf1"`
	SrcAddress          string `json:"srcAddress" description:"IPv4 source to match"`
	DstAddress          string `json:"dstAddress" description:"IPv4 destination to match"`
	SrcAddressRewritten string `json:"srcAddressRewritten" description:"IPv4 source written on the duplicate"`
	DstAddressRewritten string `json:"dstAddressRewritten" description:"IPv4 destination written on the duplicate"`
}

type SliceIDRow struct {
	DeviceID   string `json:"deviceId" description:"Device identifier"`
	PortNumber string `json:"portNumber" description:"Port number or logical port name"`
	SliceID    string `json:"sliceId" description:"Slice identifier, 0-255"`
}

type SliceQoSRow struct {
	SliceID string `json:"sliceId" description:"Slice identifier, 0-255"`
	PIR     string `json:"pir" description:"Peak information rate in bits per second"`
}
