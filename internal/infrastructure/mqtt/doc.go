// Package mqtt provides the MQTT connection Synexa uses as its device
// command transport and event bus.
//
// Routine steps of type DEVICE_COMMAND are published to
// synexa/command/{deviceId}; device adapters answer on synexa/state/{deviceId},
// which the service relays to websocket clients. Core events (routine runs,
// discovery scans) are mirrored to synexa/event/{type}.
//
// The client reconnects automatically and restores tracked subscriptions.
// A retained status message on synexa/system/status, plus a Last Will, lets
// adapters notice when the service goes away.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.Command("wled-192.168.1.20-80"), cmd, 1, false)
package mqtt
