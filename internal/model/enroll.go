package model

const (
	MinSlotID = 1
	MaxSlotID = 200
)

// EnrollmentRequest is transient input consumed once by the enrollment
// controller.
type EnrollmentRequest struct {
	SlotID      int    `json:"slotId"`
	DisplayName string `json:"name"`
}

func (r EnrollmentRequest) SlotInRange() bool {
	return r.SlotID >= MinSlotID && r.SlotID <= MaxSlotID
}

type EnrollResult struct {
	OK         bool `json:"ok"`
	ReturnCode int  `json:"returnCode,omitempty"`
}

type Fingerprint struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}
