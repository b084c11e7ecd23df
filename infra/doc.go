// Package infra contains technical adapters such as MQTT clients, history
// stores and metrics exporters. These packages should depend only on the
// interfaces defined in the core packages and register themselves with the
// core registries from init.
package infra
