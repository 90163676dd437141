package model

const (
	DefaultNTPServer     = "pool.ntp.org"
	DefaultSensorPin     = "00000000"
	DefaultMQTTRootTopic = "fingerprintDoorbell"

	// PasswordPlaceholder is handed to the web UI instead of the stored WiFi
	// password. Saving it back keeps the stored value.
	PasswordPlaceholder = "********"
)

// Named settings records.
const (
	SettingsRecordWifi = "wifi"
	SettingsRecordApp  = "app"
)

type WifiSettings struct {
	Hostname string `json:"hostname" yaml:"hostname"`
	SSID     string `json:"ssid" yaml:"ssid"`
	Password string `json:"password" yaml:"password"`
}

func (w WifiSettings) IsConfigured() bool {
	return w.SSID != ""
}

// Masked returns a copy safe to hand to the web layer.
func (w WifiSettings) Masked() WifiSettings {
	if w.Password != "" {
		w.Password = PasswordPlaceholder
	}
	return w
}

type AppSettings struct {
	NTPServer          string `json:"ntpServer" yaml:"ntp_server"`
	SensorPin          string `json:"sensorPin" yaml:"sensor_pin"`
	SensorPairingCode  string `json:"sensorPairingCode" yaml:"sensor_pairing_code"`
	SensorPairingValid bool   `json:"sensorPairingValid" yaml:"sensor_pairing_valid"`
	MQTTRootTopic      string `json:"mqttRootTopic" yaml:"mqtt_root_topic"`
}

func DefaultAppSettings() AppSettings {
	return AppSettings{
		NTPServer:     DefaultNTPServer,
		SensorPin:     DefaultSensorPin,
		MQTTRootTopic: DefaultMQTTRootTopic,
	}
}

// WithDefaults fills empty optional fields. Pairing fields are never
// defaulted.
func (a AppSettings) WithDefaults() AppSettings {
	if a.NTPServer == "" {
		a.NTPServer = DefaultNTPServer
	}
	if a.SensorPin == "" {
		a.SensorPin = DefaultSensorPin
	}
	if a.MQTTRootTopic == "" {
		a.MQTTRootTopic = DefaultMQTTRootTopic
	}
	return a
}

func (a AppSettings) Pairing() PairingState {
	return PairingState{PairingCode: a.SensorPairingCode, Valid: a.SensorPairingValid}
}
