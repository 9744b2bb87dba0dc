// Package emitter provides Instruction Emitters that hand the rendered
// display mapping to a local sink: the process output or the character
// device driving the platform displays.
//
// Emitters register themselves with the dispatch emitter registry and are
// selected by the "emitters" configuration list:
//
//	emitters:
//	  - type: console
//	  - type: device
//	    conf:
//	      path: /dev/ttyAMA0
package emitter
