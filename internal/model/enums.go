package model

// OperatingMode is the top-level state of the doorbell controller. Exactly one
// mode is active at a time.
type OperatingMode string

const (
	ModeScan        OperatingMode = "scan"
	ModeEnroll      OperatingMode = "enroll"
	ModeWifiConfig  OperatingMode = "wificonfig"
	ModeMaintenance OperatingMode = "maintenance"
)

func (m OperatingMode) String() string {
	return string(m)
}

// ScanTag identifies the kind of a ScanOutcome. Edge detection compares tags
// only, never payloads.
type ScanTag string

const (
	ScanNoFinger     ScanTag = "no_finger"
	ScanMatchFound   ScanTag = "match_found"
	ScanNoMatchFound ScanTag = "no_match_found"
	ScanError        ScanTag = "error"
)

func (t ScanTag) String() string {
	return string(t)
}

type LEDState string

const (
	LEDReady      LEDState = "ready"
	LEDError      LEDState = "error"
	LEDWifiConfig LEDState = "wificonfig"
)

type DetectionKind string

const (
	DetectionMatch             DetectionKind = "match"
	DetectionNoMatch           DetectionKind = "no_match"
	DetectionSecurityViolation DetectionKind = "security_violation"
)
