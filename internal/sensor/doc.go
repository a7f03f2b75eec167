// Package sensor owns the connection lifecycle to the wearable sensor and
// decodes its wire protocol into raw interval samples with per-sample
// contact-quality flags.
//
// The connection lifecycle is an explicit state machine (see
// ConnectionState) so retry bounds and error escalation are testable in
// isolation. Characteristic payloads reach the link through a Transport;
// the production implementation rides MQTT from the acquisition gateway
// that handles the actual BLE session.
package sensor
