// Package ftpc adapts an FTP server to the session capability the bridge
// consumes. A session is one authenticated control connection, opened per
// filesystem operation and closed before the operation returns; sessions
// are never shared or pooled.
package ftpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ianzepp/monk-ftp/internal/listing"
)

// Transport names accepted by NewDialer.
const (
	TransportFTP   = "ftp"   // structured client (jlaffaye/ftp), the default
	TransportPlain = "plain" // raw control/PASV exchange, feeds the listing parser
)

// Config holds the connection settings for one FTP endpoint.
type Config struct {
	Host        string
	Port        int
	User        string
	Passphrase  string
	Transport   string
	DialTimeout time.Duration
}

// Addr returns the host:port dial address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) timeout() time.Duration {
	if c.DialTimeout <= 0 {
		return 30 * time.Second
	}
	return c.DialTimeout
}

// Session is one live authenticated connection. At most one command is in
// flight at a time; callers must Close on every exit path.
type Session interface {
	// List fetches and parses the directory listing for path.
	List(path string) (*listing.Listing, error)

	// Retrieve streams the entire remote object into sink.
	Retrieve(path string, sink io.Writer) error

	// Store replaces the entire remote object with the bytes read from source.
	Store(path string, source io.Reader) error

	// Delete removes the remote object.
	Delete(path string) error

	// Size issues a SIZE query. Callers treat failure as non-fatal.
	Size(path string) (int64, error)

	// ModTime issues an MDTM query. Callers treat failure as non-fatal.
	ModTime(path string) (time.Time, error)

	Close() error
}

// Dialer opens sessions. Dial either returns a fully usable session or an
// error; a connection that failed login is closed before Dial returns.
type Dialer interface {
	Dial(ctx context.Context) (Session, error)
}

// NewDialer selects a transport implementation from cfg.
func NewDialer(cfg Config) (Dialer, error) {
	switch cfg.Transport {
	case "", TransportFTP:
		return &ftpDialer{cfg: cfg}, nil
	case TransportPlain:
		return &plainDialer{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
