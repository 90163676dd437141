package sensor

import "github.com/fingerprintdoorbell/doorbell-server-go/internal/model"

// Commands understood by the sensor bridge firmware. Each request is one
// JSON object per line and is answered by exactly one JSON line.
const (
	cmdPing           = "ping"
	cmdScan           = "scan"
	cmdEnroll         = "enroll"
	cmdPresent        = "present"
	cmdList           = "list"
	cmdDelete         = "delete"
	cmdRename         = "rename"
	cmdDeleteAll      = "deleteAll"
	cmdGetPairingCode = "getPairingCode"
	cmdSetPairingCode = "setPairingCode"
	cmdLED            = "led"
)

// Scan results reported by the bridge.
const (
	resultNone    = "none"
	resultMatch   = "match"
	resultNoMatch = "nomatch"
	resultError   = "error"
)

type request struct {
	Cmd         string `json:"cmd"`
	ID          int    `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	PairingCode string `json:"pairingCode,omitempty"`
	State       string `json:"state,omitempty"`
}

type response struct {
	OK          bool                `json:"ok"`
	Result      string              `json:"result,omitempty"`
	ID          int                 `json:"id,omitempty"`
	Name        string              `json:"name,omitempty"`
	Confidence  int                 `json:"confidence,omitempty"`
	Code        int                 `json:"code,omitempty"`
	Present     bool                `json:"present,omitempty"`
	PairingCode string              `json:"pairingCode,omitempty"`
	Fingers     []model.Fingerprint `json:"fingers,omitempty"`
	Error       string              `json:"error,omitempty"`
}

func (r response) outcome() model.ScanOutcome {
	switch r.Result {
	case resultNone:
		return model.NoFinger()
	case resultMatch:
		return model.MatchFound(r.ID, r.Name, r.Confidence)
	case resultNoMatch:
		return model.NoMatchFound(r.Code)
	default:
		return model.ScanFailed(r.Code)
	}
}
