package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when an overlay transition is not allowed
// from the current state.
var ErrInvalidTransition = errors.New("invalid overlay transition")

// Overlay is the modal surface rendered atop the shell. It is a closed set:
// the only values are OverlayClosed, OverlayLogin and OverlayRegister.
type Overlay struct {
	kind overlayKind
}

type overlayKind uint8

const (
	closedKind overlayKind = iota
	loginKind
	registerKind
)

var (
	// OverlayClosed means no modal is visible.
	OverlayClosed = Overlay{kind: closedKind}
	// OverlayLogin shows the login form.
	OverlayLogin = Overlay{kind: loginKind}
	// OverlayRegister shows the registration form.
	OverlayRegister = Overlay{kind: registerKind}
)

// String returns the wire name of the overlay.
func (o Overlay) String() string {
	switch o.kind {
	case loginKind:
		return "login"
	case registerKind:
		return "register"
	default:
		return "closed"
	}
}

// IsOpen reports whether a modal is visible.
func (o Overlay) IsOpen() bool { return o.kind != closedKind }

// MarshalText implements encoding.TextMarshaler.
func (o Overlay) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ParseOverlay maps a wire name back to an overlay.
func ParseOverlay(s string) (Overlay, error) {
	switch s {
	case "closed", "close", "":
		return OverlayClosed, nil
	case "login":
		return OverlayLogin, nil
	case "register":
		return OverlayRegister, nil
	}
	return OverlayClosed, fmt.Errorf("unknown overlay %q", s)
}

// OpenLogin handles the sign-in click: Closed -> Login.
func (o Overlay) OpenLogin() (Overlay, error) {
	if o != OverlayClosed {
		return o, fmt.Errorf("%w: sign-in from %s", ErrInvalidTransition, o)
	}
	return OverlayLogin, nil
}

// SwitchToRegister handles the register link: Login -> Register.
func (o Overlay) SwitchToRegister() (Overlay, error) {
	if o != OverlayLogin {
		return o, fmt.Errorf("%w: switch to register from %s", ErrInvalidTransition, o)
	}
	return OverlayRegister, nil
}

// SwitchToLogin handles the login link: Register -> Login.
func (o Overlay) SwitchToLogin() (Overlay, error) {
	if o != OverlayRegister {
		return o, fmt.Errorf("%w: switch to login from %s", ErrInvalidTransition, o)
	}
	return OverlayLogin, nil
}

// Close handles an explicit close or a successful submit: Login|Register -> Closed.
func (o Overlay) Close() (Overlay, error) {
	if !o.IsOpen() {
		return o, fmt.Errorf("%w: close while closed", ErrInvalidTransition)
	}
	return OverlayClosed, nil
}
