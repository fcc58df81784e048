package ftpc

import (
	"context"
	"io"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/ianzepp/monk-ftp/internal/listing"
)

// ftpDialer opens sessions through the jlaffaye/ftp client. This is the
// default transport: it negotiates MLSD where available and falls back to
// LIST parsing inside the library.
type ftpDialer struct {
	cfg Config
}

func (d *ftpDialer) Dial(ctx context.Context) (Session, error) {
	conn, err := ftp.Dial(d.cfg.Addr(),
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(d.cfg.timeout()),
	)
	if err != nil {
		return nil, connErr("connect", err)
	}

	if err := conn.Login(d.cfg.User, d.cfg.Passphrase); err != nil {
		conn.Quit()
		return nil, connErr("login", err)
	}

	return &ftpSession{conn: conn}, nil
}

type ftpSession struct {
	conn *ftp.ServerConn
}

func (s *ftpSession) List(path string) (*listing.Listing, error) {
	raw, err := s.conn.List(path)
	if err != nil {
		return nil, Classify(err)
	}

	entries := make([]listing.Entry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, listing.Entry{
			Name:    e.Name,
			Dir:     e.Type == ftp.EntryTypeFolder,
			Size:    int64(e.Size),
			ModTime: e.Time,
		})
	}
	return listing.FromEntries(entries), nil
}

func (s *ftpSession) Retrieve(path string, sink io.Writer) error {
	resp, err := s.conn.Retr(path)
	if err != nil {
		return Classify(err)
	}
	defer resp.Close()

	if _, err := io.Copy(sink, resp); err != nil {
		return Classify(err)
	}
	return nil
}

func (s *ftpSession) Store(path string, source io.Reader) error {
	return Classify(s.conn.Stor(path, source))
}

func (s *ftpSession) Delete(path string) error {
	return Classify(s.conn.Delete(path))
}

func (s *ftpSession) Size(path string) (int64, error) {
	n, err := s.conn.FileSize(path)
	if err != nil {
		return 0, Classify(err)
	}
	return n, nil
}

func (s *ftpSession) ModTime(path string) (time.Time, error) {
	t, err := s.conn.GetTime(path)
	if err != nil {
		return time.Time{}, Classify(err)
	}
	return t, nil
}

func (s *ftpSession) Close() error {
	return s.conn.Quit()
}
