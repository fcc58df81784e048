package ftpc

import (
	"errors"
	"fmt"
	"net/textproto"
)

// The filesystem error taxonomy. Every failure leaving this package wraps
// exactly one of these sentinels; no protocol-specific type crosses the
// boundary untranslated.
var (
	// ErrNotFound: the remote path is absent (550/450 class replies).
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied: the server refused the operation (530/532 class).
	ErrAccessDenied = errors.New("access denied")

	// ErrConnection: the session could not be established (transport or
	// login failure). Always fatal to the current operation.
	ErrConnection = errors.New("connection refused")

	// ErrIO: any other protocol or transport fault.
	ErrIO = errors.New("i/o error")
)

// StatusError is a server reply with a failure code, already mapped onto
// the taxonomy. It distinguishes "the server said no" from transport faults,
// which matters to the attribute resolver: rejected probes default, broken
// transports escalate.
type StatusError struct {
	Code  int
	Msg   string
	class error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: %d %s", e.class, e.Code, e.Msg)
}

func (e *StatusError) Unwrap() error { return e.class }

// IsStatus reports whether err carries an FTP reply code.
func IsStatus(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// Classify translates a protocol-level failure into the taxonomy. FTP reply
// codes carried in textproto errors map by status class; anything without a
// recognizable code is an I/O error. Errors already carrying a sentinel pass
// through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrConnection) || errors.Is(err, ErrIO) {
		return err
	}

	var reply *textproto.Error
	if errors.As(err, &reply) {
		se := &StatusError{Code: reply.Code, Msg: reply.Msg}
		switch reply.Code {
		case 450, 550: // file unavailable / no such file
			se.class = ErrNotFound
		case 530, 532: // not logged in / need account
			se.class = ErrAccessDenied
		default:
			se.class = ErrIO
		}
		return se
	}

	return fmt.Errorf("%w: %v", ErrIO, err)
}

// statusErr reports a well-formed server reply whose payload could not be
// used, such as an unparseable SIZE or MDTM body. The server did answer, so
// this is a status rejection, not a transport fault.
func statusErr(code int, format string, args ...any) error {
	return &StatusError{Code: code, Msg: fmt.Sprintf(format, args...), class: ErrIO}
}

// connErr wraps err as a session-establishment failure.
func connErr(stage string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrConnection, stage, err)
}
