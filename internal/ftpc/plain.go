package ftpc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/ianzepp/monk-ftp/internal/listing"
)

// plainDialer speaks the control channel directly (USER/PASS, PASV, LIST,
// RETR, STOR, DELE, SIZE, MDTM). Unlike the structured client it hands the
// raw LIST text to the listing parser unmodified, which is what minimal
// servers with a fixed 9-field listing format need.
type plainDialer struct {
	cfg Config
}

func (d *plainDialer) Dial(ctx context.Context) (Session, error) {
	dialer := net.Dialer{Timeout: d.cfg.timeout()}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Addr())
	if err != nil {
		return nil, connErr("connect", err)
	}

	s := &plainSession{
		conn:    conn,
		text:    textproto.NewConn(conn),
		timeout: d.cfg.timeout(),
	}

	if _, _, err := s.text.ReadResponse(220); err != nil {
		conn.Close()
		return nil, connErr("greeting", err)
	}
	if err := s.login(d.cfg.User, d.cfg.Passphrase); err != nil {
		s.Close()
		return nil, connErr("login", err)
	}
	if _, _, err := s.cmd(200, "TYPE I"); err != nil {
		s.Close()
		return nil, connErr("type", err)
	}

	return s, nil
}

type plainSession struct {
	conn    net.Conn
	text    *textproto.Conn
	timeout time.Duration
}

func (s *plainSession) cmd(expect int, format string, args ...any) (int, string, error) {
	if err := s.text.PrintfLine(format, args...); err != nil {
		return 0, "", err
	}
	return s.text.ReadResponse(expect)
}

func (s *plainSession) login(user, pass string) error {
	code, _, err := s.cmd(0, "USER %s", user)
	if err != nil {
		return err
	}
	switch {
	case code == 230: // logged in without password
		return nil
	case code/100 == 3: // 331: password required
		_, _, err := s.cmd(230, "PASS %s", pass)
		return err
	default:
		return &textproto.Error{Code: code, Msg: "unexpected USER reply"}
	}
}

// openData enters passive mode, connects the data channel, and issues the
// command. The caller must drain and close the returned connection, then
// read the final transfer reply with finishData.
func (s *plainSession) openData(format string, args ...any) (net.Conn, error) {
	_, msg, err := s.cmd(227, "PASV")
	if err != nil {
		return nil, err
	}
	addr, err := parsePasvAddr(msg)
	if err != nil {
		return nil, err
	}

	data, err := net.DialTimeout("tcp", addr, s.timeout)
	if err != nil {
		return nil, err
	}

	if _, _, err := s.cmd(1, format, args...); err != nil { // 125/150
		data.Close()
		return nil, err
	}
	return data, nil
}

func (s *plainSession) finishData() error {
	_, _, err := s.text.ReadResponse(2) // 226
	return err
}

func (s *plainSession) List(path string) (*listing.Listing, error) {
	data, err := s.openData("LIST %s", path)
	if err != nil {
		return nil, Classify(err)
	}

	var lines []string
	scanner := bufio.NewScanner(data)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	scanErr := scanner.Err()
	data.Close()

	if err := s.finishData(); err != nil {
		return nil, Classify(err)
	}
	if scanErr != nil {
		return nil, Classify(scanErr)
	}
	return listing.Parse(lines), nil
}

func (s *plainSession) Retrieve(path string, sink io.Writer) error {
	data, err := s.openData("RETR %s", path)
	if err != nil {
		return Classify(err)
	}

	_, copyErr := io.Copy(sink, data)
	data.Close()

	if err := s.finishData(); err != nil {
		return Classify(err)
	}
	return Classify(copyErr)
}

func (s *plainSession) Store(path string, source io.Reader) error {
	data, err := s.openData("STOR %s", path)
	if err != nil {
		return Classify(err)
	}

	_, copyErr := io.Copy(data, source)
	data.Close() // EOF on the data channel completes the transfer

	if err := s.finishData(); err != nil {
		return Classify(err)
	}
	return Classify(copyErr)
}

func (s *plainSession) Delete(path string) error {
	_, _, err := s.cmd(2, "DELE %s", path)
	return Classify(err)
}

func (s *plainSession) Size(path string) (int64, error) {
	_, msg, err := s.cmd(213, "SIZE %s", path)
	if err != nil {
		return 0, Classify(err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(msg), 10, 64)
	if err != nil {
		return 0, statusErr(213, "SIZE reply %q: not a number", msg)
	}
	return n, nil
}

func (s *plainSession) ModTime(path string) (time.Time, error) {
	_, msg, err := s.cmd(213, "MDTM %s", path)
	if err != nil {
		return time.Time{}, Classify(err)
	}
	t, err := ParseMDTM(strings.TrimSpace(msg))
	if err != nil {
		return time.Time{}, statusErr(213, "MDTM reply %q: %v", msg, err)
	}
	return t, nil
}

func (s *plainSession) Close() error {
	s.text.PrintfLine("QUIT")
	return s.text.Close()
}

const mdtmLayout = "20060102150405"

// ParseMDTM parses the fixed 14-digit MDTM payload (YYYYMMDDHHMMSS, UTC).
func ParseMDTM(payload string) (time.Time, error) {
	if len(payload) != len(mdtmLayout) {
		return time.Time{}, fmt.Errorf("MDTM payload %q: want %d digits", payload, len(mdtmLayout))
	}
	return time.ParseInLocation(mdtmLayout, payload, time.UTC)
}

// parsePasvAddr extracts host:port from a 227 reply such as
// "Entering Passive Mode (127,0,0,1,78,52)".
func parsePasvAddr(msg string) (string, error) {
	tuple := msg
	if open := strings.IndexByte(msg, '('); open >= 0 {
		if close := strings.LastIndexByte(msg, ')'); close > open {
			tuple = msg[open+1 : close]
		}
	}

	parts := strings.Split(tuple, ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("malformed PASV reply %q", msg)
	}

	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("malformed PASV reply %q", msg)
		}
		nums[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]<<8 | nums[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}
