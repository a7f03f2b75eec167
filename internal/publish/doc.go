// Package publish ships emitted pipeline results to downstream consumers
// over MQTT, buffering across broker outages with oldest-eviction and
// reconnecting with truncated exponential backoff.
package publish
