package hci

import "fmt"

// Status is a controller error code as returned in Command Complete and
// Command Status events (Bluetooth Core Spec Vol 1, Part F).
type Status uint8

const (
	StatusSuccess               Status = 0x00
	StatusUnknownCommand        Status = 0x01
	StatusUnknownConnID         Status = 0x02
	StatusHardwareFailure       Status = 0x03
	StatusPageTimeout           Status = 0x04
	StatusAuthFailure           Status = 0x05
	StatusPINOrKeyMissing       Status = 0x06
	StatusMemoryExceeded        Status = 0x07
	StatusConnectionTimeout     Status = 0x08
	StatusConnectionLimit       Status = 0x09
	StatusConnAlreadyExists     Status = 0x0B
	StatusCommandDisallowed     Status = 0x0C
	StatusRejectedResources     Status = 0x0D
	StatusRejectedSecurity      Status = 0x0E
	StatusRejectedBDAddr        Status = 0x0F
	StatusAcceptTimeout         Status = 0x10
	StatusUnsupportedFeature    Status = 0x11
	StatusInvalidParameters     Status = 0x12
	StatusRemoteTerminated      Status = 0x13
	StatusLocalTerminated       Status = 0x16
	StatusRepeatedAttempts      Status = 0x17
	StatusPairingNotAllowed     Status = 0x18
	StatusUnspecifiedError      Status = 0x1F
	StatusLMPResponseTimeout    Status = 0x22
	StatusInstantPassed         Status = 0x28
	StatusUnitKeyUnsupported    Status = 0x29
	StatusInsufficientSecurity  Status = 0x2F
	StatusHostBusyPairing       Status = 0x38
	StatusControllerBusy        Status = 0x3A
	StatusAdvertisingTimeout    Status = 0x3C
	StatusConnFailedToEstablish Status = 0x3E
)

var statusNames = map[Status]string{
	StatusSuccess:               "Success",
	StatusUnknownCommand:        "Unknown HCI Command",
	StatusUnknownConnID:         "Unknown Connection Identifier",
	StatusHardwareFailure:       "Hardware Failure",
	StatusPageTimeout:           "Page Timeout",
	StatusAuthFailure:           "Authentication Failure",
	StatusPINOrKeyMissing:       "PIN or Key Missing",
	StatusMemoryExceeded:        "Memory Capacity Exceeded",
	StatusConnectionTimeout:     "Connection Timeout",
	StatusConnectionLimit:       "Connection Limit Exceeded",
	StatusConnAlreadyExists:     "Connection Already Exists",
	StatusCommandDisallowed:     "Command Disallowed",
	StatusRejectedResources:     "Connection Rejected due to Limited Resources",
	StatusRejectedSecurity:      "Connection Rejected due to Security Reasons",
	StatusRejectedBDAddr:        "Connection Rejected due to Unacceptable BD_ADDR",
	StatusAcceptTimeout:         "Connection Accept Timeout Exceeded",
	StatusUnsupportedFeature:    "Unsupported Feature or Parameter Value",
	StatusInvalidParameters:     "Invalid HCI Command Parameters",
	StatusRemoteTerminated:      "Remote User Terminated Connection",
	StatusLocalTerminated:       "Connection Terminated by Local Host",
	StatusRepeatedAttempts:      "Repeated Attempts",
	StatusPairingNotAllowed:     "Pairing Not Allowed",
	StatusUnspecifiedError:      "Unspecified Error",
	StatusLMPResponseTimeout:    "LMP Response Timeout",
	StatusInstantPassed:         "Instant Passed",
	StatusUnitKeyUnsupported:    "Pairing with Unit Key Not Supported",
	StatusInsufficientSecurity:  "Insufficient Security",
	StatusHostBusyPairing:       "Host Busy - Pairing",
	StatusControllerBusy:        "Controller Busy",
	StatusAdvertisingTimeout:    "Advertising Timeout",
	StatusConnFailedToEstablish: "Connection Failed to be Established",
}

// String renders the code the way hcidump does, e.g. "0x0c Command Disallowed".
func (s Status) String() string {
	name, ok := statusNames[s]
	if !ok {
		name = "Unknown Error"
	}
	return fmt.Sprintf("0x%02x %s", uint8(s), name)
}

// Class partitions command outcomes for the normalization policy.
type Class int

const (
	// ClassSuccess is status 0x00.
	ClassSuccess Class = iota
	// ClassBenign is Command Disallowed: the controller already holds the
	// requested state. Acceptable during normalization, logged as a warning.
	ClassBenign
	// ClassFatal is every other code.
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassBenign:
		return "benign"
	default:
		return "fatal"
	}
}

// Outcome is the result of one controller command.
type Outcome struct {
	Status Status
}

// Class classifies the outcome for the continue/abort decision.
func (o Outcome) Class() Class {
	switch o.Status {
	case StatusSuccess:
		return ClassSuccess
	case StatusCommandDisallowed:
		return ClassBenign
	default:
		return ClassFatal
	}
}

// OK reports whether the command succeeded outright.
func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// StatusError is a fatal controller outcome surfaced as an error, carrying
// the failing command's name and status code.
type StatusError struct {
	Op     string
	Status Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %s", e.Op, e.Status)
}
