package session

import "errors"

var (
	// ErrPermission is returned by [Controller.Start] when the microphone
	// could not be acquired. It wraps the device error.
	ErrPermission = errors.New("session: microphone access failed")

	// ErrConnection is returned by [Controller.Start] when the duplex session
	// failed to open, and reported in [Update.Err] when it drops mid-session.
	ErrConnection = errors.New("session: connection failed")

	// ErrAlreadyActive is returned by [Controller.Start] while a session is
	// connecting or active.
	ErrAlreadyActive = errors.New("session: already active")

	// ErrStopped is returned by [Controller.Start] when Stop was called
	// before the session finished opening.
	ErrStopped = errors.New("session: stopped while connecting")

	// ErrControllerClosed is returned by [Controller.Start] after
	// [Controller.Close].
	ErrControllerClosed = errors.New("session: controller closed")

	// ErrInvalidSpeed is returned by [Controller.SetSpeed] for values outside
	// [MinSpeed, MaxSpeed].
	ErrInvalidSpeed = errors.New("session: speed out of range")
)
