// Package scanning drives the two-phase network scan behind netsweep.
//
// # Overview
//
// A scan runs in two phases against the external nmap binary:
//
//   - Discovery: a ping-style sweep (-sn -PE -PS -PA -R) that returns the
//     hosts of the target that answered, in nmap output order.
//   - Probing: one service/version scan (-sV -T4 -Pn -R) per discovered
//     host, strictly sequential.
//
// The Engine interface abstracts both phases; NmapEngine implements it with
// github.com/Ullaakut/nmap/v3. The conversion from nmap runs to HostResult
// values is pure and tested without the binary.
//
// # Event Stream
//
// Orchestrator.Stream returns an iter.Seq[Event]. The sequence is lazy: no
// engine call is made until the consumer pulls, and the producer stops at the
// next event boundary once the consumer stops pulling or the context ends.
// Every discovered host yields exactly one host_result event. When a probe
// fails or exceeds its timeout, a warning status precedes a degraded record
// built from discovery data.
//
// # Usage
//
//	engine, err := scanning.NewNmapEngine(scanning.NmapConfig{})
//	if err != nil {
//		return err
//	}
//	o := scanning.NewOrchestrator(engine, scanning.OrchestratorConfig{})
//	for event := range o.Stream(ctx, "192.168.1.0/24") {
//		fmt.Println(event)
//	}
package scanning
