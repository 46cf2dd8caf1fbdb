package discovery

import (
	"fmt"
	"strings"
)

// ProviderGeneric tags devices with no recognised vendor.
const ProviderGeneric = "generic"

// serviceType maps an advertised DNS-SD service to a provider and type.
type serviceType struct {
	Service  string
	Provider string
	Type     DeviceType
}

// knownServices are browsed by the passive listeners.
var knownServices = []serviceType{
	{Service: "_http._tcp", Provider: ProviderGeneric, Type: TypeOther},
	{Service: "_hap._tcp", Provider: "homekit", Type: TypeOther},
	{Service: "_googlecast._tcp", Provider: "google-cast", Type: TypeMedia},
	{Service: "_airplay._tcp", Provider: "airplay", Type: TypeMedia},
	{Service: "_sonos._tcp", Provider: "sonos", Type: TypeMedia},
	{Service: "_tuya._tcp", Provider: "tuya", Type: TypeOutlet},
	{Service: "_wled._tcp", Provider: "wled", Type: TypeLight},
	{Service: "_hue._tcp", Provider: "philips-hue", Type: TypeLight},
}

// nameKeywords refine a type from a device name. Checked in order; the
// first type with a matching keyword wins.
var nameKeywords = []struct {
	Type     DeviceType
	Keywords []string
}{
	{TypeLight, []string{"lamp", "light", "bulb", "lampe", "ampoule", "led", "wled"}},
	{TypeThermostat, []string{"thermostat", "nest", "ecobee", "chauffage", "heating"}},
	{TypeOutlet, []string{"plug", "outlet", "socket", "prise"}},
	{TypeSensor, []string{"sensor", "capteur", "motion", "temperature"}},
	{TypeMedia, []string{"tv", "speaker", "chromecast", "enceinte", "sonos", "cast"}},
}

// typeFromName returns the type suggested by name, or TypeOther.
func typeFromName(name string) DeviceType {
	lower := strings.ToLower(name)
	for _, group := range nameKeywords {
		for _, kw := range group.Keywords {
			if strings.Contains(lower, kw) {
				return group.Type
			}
		}
	}
	return TypeOther
}

// refineType prefers a keyword match on name over the base type.
func refineType(base DeviceType, name string) DeviceType {
	if t := typeFromName(name); t != TypeOther {
		return t
	}
	return base
}

// fingerprint identifies a vendor from an HTTP response body.
type fingerprint struct {
	Markers      []string
	Provider     string
	Manufacturer string
	Type         DeviceType
}

// fingerprints are matched against the lower-cased body, in order.
var fingerprints = []fingerprint{
	{Markers: []string{"philips hue", "hue bridge", "hue personal wireless lighting"}, Provider: "philips-hue", Manufacturer: "Philips", Type: TypeLight},
	{Markers: []string{"wled"}, Provider: "wled", Manufacturer: "WLED", Type: TypeLight},
	{Markers: []string{"tasmota"}, Provider: "tasmota", Manufacturer: "Tasmota", Type: TypeOutlet},
	{Markers: []string{"shelly"}, Provider: "shelly", Manufacturer: "Shelly", Type: TypeOutlet},
	{Markers: []string{"esphome"}, Provider: "esphome", Manufacturer: "ESPHome", Type: TypeSensor},
	{Markers: []string{"sonos"}, Provider: "sonos", Manufacturer: "Sonos", Type: TypeMedia},
	{Markers: []string{"tuya", "smart life"}, Provider: "tuya", Manufacturer: "Tuya", Type: TypeOutlet},
	{Markers: []string{"home assistant", "home-assistant"}, Provider: "home-assistant", Manufacturer: "Home Assistant", Type: TypeOther},
	{Markers: []string{"google nest", "nest thermostat", "nest.com"}, Provider: "google-nest", Manufacturer: "Google", Type: TypeThermostat},
}

// matchFingerprint returns the first fingerprint found in body.
func matchFingerprint(body string) (fingerprint, bool) {
	lower := strings.ToLower(body)
	for _, fp := range fingerprints {
		for _, m := range fp.Markers {
			if strings.Contains(lower, m) {
				return fp, true
			}
		}
	}
	return fingerprint{}, false
}

// deviceID builds the synthesized network id {provider}-{ip}-{port}.
func deviceID(provider, ip string, port int) string {
	return fmt.Sprintf("%s-%s-%d", provider, ip, port)
}
