// Package mqtt provides MQTT client connectivity for FishControl.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is an optional outbound bridge: when enabled, the events fan-out
// mirrors device state changes and execution events onto the broker so
// dashboards and home-automation systems can follow the tank without
// touching the HTTP API. Nothing in the core depends on the broker
// being up.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.DeviceState("pump1")
//	client.PublishRetained(topic, []byte(`{"value":75,"online":true}`))
package mqtt
