package tracker

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Mount option requesting recursive slave propagation after mounting.
const optRSlave = "rslave"

// Describes a proc filesystem mounted on target.
func ProcMount(target string) specs.Mount {
	return specs.Mount{
		Destination: target,
		Type:        "proc",
		Source:      "proc",
	}
}

// Describes a recursive bind of the host directory source on target, with
// mount events from the host propagating in but not out.
func BindMount(source, target string) specs.Mount {
	return specs.Mount{
		Destination: target,
		Type:        "bind",
		Source:      source,
		Options:     []string{"rbind", optRSlave},
	}
}
