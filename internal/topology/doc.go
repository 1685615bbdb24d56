// Package topology compiles declarative CUE node-graph descriptions into
// live graphs.
//
// A topology file declares masters with their initial canonical data,
// composites relaying from an upstream source, and expressions observing
// sources through selectors:
//
//	master: pantry: {
//		data: {
//			alice: {age: 30, pie: "apple"}
//		}
//	}
//
//	composite: kitchen: {
//		upstream: "pantry"
//		select: {prefix: ["alice"]}
//	}
//
//	expression: menu: {
//		upstream: ["kitchen"]
//		select: {fields: ["pie"]}
//	}
//
// Compilation validates the declarations against the graph rules before
// any node is built: names must be unique, upstream references must
// resolve to a master or composite, and the composite relay graph must be
// acyclic. Build then materializes nodes bottom-up so initial snapshots
// flow through the whole graph.
package topology
