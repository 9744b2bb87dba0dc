// Package factory provides a small generic registry used to instantiate modules
// from configuration. Modules are defined by a type string and a map of raw
// settings. Factories decode the settings into typed structs and return the
// concrete implementation.
//
// Emitters and metrics sinks are both built this way:
//
//	emitters:
//	  - type: console
//	  - type: mqtt
//	    conf: {broker: "tcp://localhost:1883", topic: "busbom/platforms"}
package factory
