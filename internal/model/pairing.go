package model

// PairingState is the persisted trust anchor for the attached sensor. Valid is
// a latch: once cleared by a mismatch it stays cleared until a successful
// re-pairing.
type PairingState struct {
	PairingCode string `json:"pairingCode"`
	Valid       bool   `json:"valid"`
}

// IsFirstBoot reports whether the device was never paired.
func (p PairingState) IsFirstBoot() bool {
	return !p.Valid && p.PairingCode == ""
}
