package mqtt

import "fmt"

// TopicPrefix is the root of every Synexa topic.
const TopicPrefix = "synexa"

// Topics builds Synexa MQTT topic names.
//
//	mqtt.Topics{}.Command("tuya-192.168.1.40-80") // "synexa/command/tuya-192.168.1.40-80"
type Topics struct{}

// Command is where device commands for deviceID are published.
func (Topics) Command(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, deviceID)
}

// DeviceState is where an adapter reports the state of deviceID.
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// Event is where core events of eventType (e.g. "routine.executed") are mirrored.
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// SystemStatus carries the retained online/offline status of the service.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDeviceStates matches DeviceState for every device.
func (Topics) AllDeviceStates() string {
	return TopicPrefix + "/state/+"
}

// AllEvents matches every mirrored core event.
func (Topics) AllEvents() string {
	return TopicPrefix + "/event/#"
}
