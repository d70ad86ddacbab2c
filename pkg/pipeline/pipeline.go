// Package pipeline names the fabric pipeline objects programmed by tpc.
//
// Every identifier is an opaque string matched against the switch P4Info;
// nothing in tpc parses them.
package pipeline

import "time"

const AppName = "org.onosproject.tpc-app"

const (
	HighPriority    = 3000
	MediumPriority  = 7000
	DefaultPriority = 10000
)

const (
	CleanUpDelay             = 2000 * time.Millisecond
	DefaultCleanUpRetryTimes = 10
)

const (
	CheckerReportEthType uint16 = 0x5678
	CheckerReportEthMask uint16 = 0xFFFF
)

const (
	TableIngressSliceLookup = "FabricIngress.init_control.tb_lookup_static_slices"
	TableEgressSliceLookup  = "FabricEgress.checker_control.tb_lookup_static_slices"
	TableCheckFirstHop      = "FabricIngress.init_control.tb_check_first_hop"
	TableCheckLastHop       = "FabricEgress.checker_control.tb_check_last_hop"
	TableShouldCheckIso     = "FabricEgress.checker_control.tb_should_check_iso"
	TableShouldCheckQoS     = "FabricEgress.checker_control.tb_should_check_qos"
	TableAttack             = "FabricIngress.attack_ingress.attack"
	TableACL                = "FabricIngress.acl.acl"
)

const (
	FieldIngressPort = "ig_port"
	FieldEgressPort  = "eg_port"
	FieldEthIsValid  = "eth_is_valid"
	FieldIPv4Src     = "ipv4_src"
	FieldIPv4Dst     = "ipv4_dst"
	FieldEthType     = "eth_type"
)

const (
	ActionIngressSliceLookup = "FabricIngress.init_control.lookup_key_in_port_in_slices"
	ActionEgressSliceLookup  = "FabricEgress.checker_control.lookup_key_eg_port_in_slices"
	ActionSetFirstHop        = "FabricIngress.init_control.set_first_hop"
	ActionSetLastHop         = "FabricEgress.checker_control.set_last_hop"
	ActionCheckIso           = "FabricEgress.checker_control.check_iso"
	ActionCheckQoS           = "FabricEgress.checker_control.check_qos"
	ActionAttackDuplicate    = "FabricIngress.attack_ingress.add_metadata_and_duplicate"
	ActionPuntToCPU          = "FabricIngress.acl.punt_to_cpu"
)

const (
	ParamIngressSliceID = "ig_slice_id"
	ParamEgressSliceID  = "eg_slice_id"
	ParamIPv4SrcAddr    = "ipv4_src_addr"
	ParamIPv4DstAddr    = "ipv4_dst_addr"
)

const MeterSliceScope = "FabricEgress.checker_control.slice_meter"

// Slice meters mark red above PIR with a fixed burst of one MTU.
const SliceMeterBurst = 1500

// PacketInIngressPort is the controller header field carrying the ingress port.
const PacketInIngressPort = "ingress_port"
