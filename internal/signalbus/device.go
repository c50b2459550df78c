package signalbus

import "github.com/nugget/chamberwatch/internal/buildinfo"

// DeviceInfo holds the Home Assistant device registry fields shared
// across every entity chamberwatch publishes. All of a chamber's
// entities reference the same device block so HA groups them under a
// single device page.
type DeviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version"`
}

// EntityConfig is the JSON payload for an HA MQTT entity discovery
// message, shared by all four entities (convened and the three
// timestamps), each published as a sensor component. It is published retained to the discovery
// topic on every broker (re-)connect.
type EntityConfig struct {
	Name              string     `json:"name"`
	ObjectID          string     `json:"object_id,omitempty"`
	HasEntityName     bool       `json:"has_entity_name,omitempty"`
	UniqueID          string     `json:"unique_id"`
	StateTopic        string     `json:"state_topic"`
	AvailabilityTopic string     `json:"availability_topic"`
	Device            DeviceInfo `json:"device"`
	Icon              string     `json:"icon,omitempty"`
	DeviceClass       string     `json:"device_class,omitempty"`
	EntityCategory    string     `json:"entity_category,omitempty"`
}

// NewDeviceInfo builds the HA device block for one chamber.
func NewDeviceInfo(chamber string) DeviceInfo {
	name := "House of Representatives"
	if chamber == "senate" {
		name = "United States Senate"
	}
	return DeviceInfo{
		Identifiers:  []string{"chamberwatch_" + chamber},
		Name:         name,
		Manufacturer: "chamberwatch",
		Model:        "Floor Activity Monitor",
		SWVersion:    buildinfo.Version,
	}
}
