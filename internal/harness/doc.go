// Package harness runs store conformance scenarios.
//
// A scenario creates a store from a configuration, builds it with a fixed
// run id and clock, runs a list of queries against it and checks
// assertions on the outcome. Scenarios double as end-to-end tests of the
// build and query paths of every modelling family that can run in-process.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: configs/small.yaml      # relative to the scenario file
//	extras:
//	  ahfull: extras/ahfull.yaml
//	build:
//	  workers: 2
//	  expect: succeeded
//	queries:
//	  - name: near
//	    source: { type: explosion, depth: 6000, moment: 1.0e+15 }
//	    targets:
//	      - codes: { network: XX, station: STA, location: "", channel: Z }
//	        north_shift: 12000
//	  - name: far
//	    source: { type: explosion, depth: 6000, moment: 1.0e+15 }
//	    targets:
//	      - codes: { network: XX, station: FAR, location: "", channel: Z }
//	        north_shift: 90000
//	    expect: out_of_grid
//	assertions:
//	  - type: peak_positive
//	    query: near
//	  - type: journal_job
//	    iz: 0
//	    status: built
//
// # Assertion Types
//
//   - trace_count: a query returned exactly N traces
//   - peak_positive: every trace of a query (or the one named by trace) is non-zero
//   - agree: the traces of two queries match within amplitude and phase tolerances
//   - journal_job: the build journal recorded a job with the given status
//
// # Deterministic Testing
//
// Builds use a fixed run id (scenario run_id, or derived from the name) and
// a frozen clock, so the snapshot written by RunWithGolden is stable.
package harness
