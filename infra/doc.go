// Package infra groups the adapters of the stop controller: the HTTP
// collector, display emitters, the MQTT client, metrics sinks and error
// monitoring. Adapters depend only on interfaces from the core packages
// and register themselves with the core factories.
package infra
