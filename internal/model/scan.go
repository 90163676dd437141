package model

import "fmt"

// ScanOutcome is the result of a single sensor poll. FingerID, Name and
// Confidence are only meaningful for ScanMatchFound; ReturnCode carries the
// sensor diagnostic code for ScanNoMatchFound and ScanError.
type ScanOutcome struct {
	Tag        ScanTag `json:"tag"`
	FingerID   int     `json:"fingerId,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence int     `json:"confidence,omitempty"`
	ReturnCode int     `json:"returnCode,omitempty"`
}

func NoFinger() ScanOutcome {
	return ScanOutcome{Tag: ScanNoFinger}
}

func MatchFound(id int, name string, confidence int) ScanOutcome {
	return ScanOutcome{Tag: ScanMatchFound, FingerID: id, Name: name, Confidence: confidence}
}

func NoMatchFound(code int) ScanOutcome {
	return ScanOutcome{Tag: ScanNoMatchFound, ReturnCode: code}
}

func ScanFailed(code int) ScanOutcome {
	return ScanOutcome{Tag: ScanError, ReturnCode: code}
}

func (o ScanOutcome) String() string {
	switch o.Tag {
	case ScanMatchFound:
		return fmt.Sprintf("match(%d %q %d)", o.FingerID, o.Name, o.Confidence)
	case ScanNoMatchFound, ScanError:
		return fmt.Sprintf("%s(code %d)", o.Tag, o.ReturnCode)
	default:
		return string(o.Tag)
	}
}
