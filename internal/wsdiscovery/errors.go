package wsdiscovery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents the category of a discovery failure
type ErrorType int

const (
	// ErrTypeNoInterfaces indicates no usable network interface was found
	ErrTypeNoInterfaces ErrorType = iota
	// ErrTypeInvalidArgument indicates a caller supplied an invalid value
	ErrTypeInvalidArgument
	// ErrTypeSend indicates a probe could not be sent on an interface
	ErrTypeSend
	// ErrTypeDecode indicates an inbound datagram was not a usable SOAP envelope
	ErrTypeDecode
	// ErrTypeTransport indicates the transport factory failed
	ErrTypeTransport
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNoInterfaces:
		return "No Interfaces"
	case ErrTypeInvalidArgument:
		return "Invalid Argument"
	case ErrTypeSend:
		return "Send Error"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeTransport:
		return "Transport Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

var (
	// ErrNoInterfaces is matched by errors.Is for every ErrTypeNoInterfaces
	// error, and for ErrTypeTransport since a failed factory also leaves
	// discovery with nothing to probe on
	ErrNoInterfaces = errors.New("no usable network interfaces")

	// ErrInvalidArgument is matched by errors.Is for every ErrTypeInvalidArgument error
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidMessageID is returned when a probe is built from the nil UUID
	ErrInvalidMessageID = fmt.Errorf("%w: messageId could not be empty", ErrInvalidArgument)
)

// DiscoveryError describes why discovery, or a part of it, failed
type DiscoveryError struct {
	Type      ErrorType // Category of error
	Message   string    // Human-readable error message
	Interface string    // Transport name (for send errors)
	Err       error     // Underlying error (if any)
}

// Error implements the error interface
func (e *DiscoveryError) Error() string {
	msg := e.Message
	if e.Interface != "" {
		msg = fmt.Sprintf("%s on %s", msg, e.Interface)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, msg)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the category sentinels
func (e *DiscoveryError) Is(target error) bool {
	switch target {
	case ErrNoInterfaces:
		return e.Type == ErrTypeNoInterfaces || e.Type == ErrTypeTransport
	case ErrInvalidArgument:
		return e.Type == ErrTypeInvalidArgument
	}
	return false
}

// NewNoInterfacesError creates the fatal startup error returned when the
// factory yields no transports. err may be nil.
func NewNoInterfacesError(err error) *DiscoveryError {
	if err != nil {
		return &DiscoveryError{
			Type:    ErrTypeTransport,
			Message: "failed to enumerate network interfaces",
			Err:     err,
		}
	}
	return &DiscoveryError{
		Type:    ErrTypeNoInterfaces,
		Message: "no usable network interfaces",
	}
}

// NewInvalidArgumentError creates an invalid argument error
func NewInvalidArgumentError(message string) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeInvalidArgument,
		Message: message,
	}
}

// NewSendError creates a session-fatal error for a failed probe send
func NewSendError(iface string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:      ErrTypeSend,
		Message:   "failed to send probe",
		Interface: iface,
		Err:       err,
	}
}

// NewDecodeError creates a decode error for an unusable datagram
func NewDecodeError(message string, err error) *DiscoveryError {
	return &DiscoveryError{
		Type:    ErrTypeDecode,
		Message: message,
		Err:     err,
	}
}

// IsSendError checks if an error is a probe send failure
func IsSendError(err error) bool {
	var discErr *DiscoveryError
	if errors.As(err, &discErr) {
		return discErr.Type == ErrTypeSend
	}
	return false
}

// IsDecodeError checks if an error is a decode failure
func IsDecodeError(err error) bool {
	var discErr *DiscoveryError
	if errors.As(err, &discErr) {
		return discErr.Type == ErrTypeDecode
	}
	return false
}

// GetTroubleshootingHint returns user-facing advice for a discovery error
func GetTroubleshootingHint(err error) string {
	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		return "An unexpected error occurred. Please try again."
	}

	switch discErr.Type {
	case ErrTypeNoInterfaces:
		return strings.Join([]string{
			"No network interface can send WS-Discovery probes.",
			"Troubleshooting:",
			"  • Check that an Ethernet or WiFi adapter is up and has an IPv4 address",
			"  • Review the interfaces/exclude_interfaces settings in your config",
			"  • Loopback and VPN tunnels are never used",
		}, "\n")

	case ErrTypeTransport:
		return "The network interfaces could not be listed. Check permissions and try again."

	case ErrTypeSend:
		return strings.Join([]string{
			fmt.Sprintf("The probe could not be sent on %s.", discErr.Interface),
			"Troubleshooting:",
			"  • Check that multicast is allowed on this network",
			"  • Verify a firewall is not blocking UDP port 3702",
			"  • Exclude the interface with --interface or exclude_interfaces",
		}, "\n")

	case ErrTypeInvalidArgument:
		return "An invalid value was supplied. Check the error message for details."

	default:
		return "An error occurred. Please check the error message for details."
	}
}
