package mqtt

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fingerprintdoorbell/doorbell-server-go/internal/config"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
	SWVersion    string   `json:"sw_version"`
}

type discoveryConfig struct {
	Name                string          `json:"name"`
	UniqueID            string          `json:"unique_id"`
	Icon                string          `json:"icon,omitempty"`
	StateTopic          string          `json:"state_topic,omitempty"`
	CommandTopic        string          `json:"command_topic,omitempty"`
	JSONAttributesTopic string          `json:"json_attributes_topic,omitempty"`
	UnitOfMeasurement   string          `json:"unit_of_measurement,omitempty"`
	DeviceClass         string          `json:"device_class,omitempty"`
	AvailabilityTopic   string          `json:"availability_topic"`
	Device              discoveryDevice `json:"device"`
}

type entity struct {
	component string
	objectID  string
	config    discoveryConfig
}

func (c *Client) entities() []entity {
	device := discoveryDevice{
		Identifiers:  []string{deviceID},
		Name:         "Fingerprint Doorbell",
		Model:        "fingerprint-doorbell-server",
		Manufacturer: "Fingerprint Doorbell",
		SWVersion:    config.VersionInfo,
	}
	availability := c.availabilityTopic()

	return []entity{
		{
			component: "sensor",
			objectID:  "person",
			config: discoveryConfig{
				Name:                "Detected Person",
				UniqueID:            deviceID + "_person",
				Icon:                "mdi:account",
				StateTopic:          c.stateTopic("person"),
				JSONAttributesTopic: c.topic("person/attributes"),
				AvailabilityTopic:   availability,
				Device:              device,
			},
		},
		{
			component: "button",
			objectID:  "ringBell",
			config: discoveryConfig{
				Name:              "Doorbell Ring Button",
				UniqueID:          deviceID + "_ringBell",
				Icon:              "mdi:bell",
				CommandTopic:      c.commandTopic("ringBell"),
				AvailabilityTopic: availability,
				Device:            device,
			},
		},
		{
			component: "sensor",
			objectID:  "wifiSignal",
			config: discoveryConfig{
				Name:              "WiFi Signal Strength",
				UniqueID:          deviceID + "_wifiSignal",
				Icon:              "mdi:wifi",
				StateTopic:        c.stateTopic("wifiSignal"),
				UnitOfMeasurement: "dBm",
				DeviceClass:       "signal_strength",
				AvailabilityTopic: availability,
				Device:            device,
			},
		},
	}
}

func (c *Client) discoveryTopic(e entity) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", c.cfg.DiscoveryPrefix, e.component, deviceID, e.objectID)
}

func (c *Client) publishDiscovery() {
	for _, e := range c.entities() {
		payload, err := json.Marshal(e.config)
		if err != nil {
			log.Error().Err(err).Str("entity", e.objectID).Msg("encode discovery config")
			continue
		}
		c.publish(c.discoveryTopic(e), string(payload), true)
	}
}
