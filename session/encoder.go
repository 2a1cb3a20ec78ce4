package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// CurrentSchemaVersion is the leading byte of every encoded payload.
const CurrentSchemaVersion = 1

const (
	maxShortString = 255
	maxListLen     = 1<<16 - 1
)

// Encode serializes s into the compact binary payload stored in the slot.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, f := range []struct{ name, v string }{
		{"userID", s.UserID},
		{"username", s.Username},
		{"deviceID", s.DeviceID},
	} {
		if err := writeString(&buf, f.name, f.v); err != nil {
			return nil, err
		}
	}

	if err := writeList(&buf, "roles", s.Roles); err != nil {
		return nil, err
	}
	if err := writeList(&buf, "permissions", s.Permissions); err != nil {
		return nil, err
	}

	for _, f := range []struct{ name, v string }{
		{"device name", s.Device.Name},
		{"device type", s.Device.Type},
		{"os", s.Device.OS},
		{"browser", s.Device.Browser},
		{"ip address", s.Device.IPAddress},
	} {
		if err := writeString(&buf, f.name, f.v); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	for _, dst := range []*string{&s.UserID, &s.Username, &s.DeviceID} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}
	if s.Roles, err = readList(reader); err != nil {
		return nil, err
	}
	if s.Permissions, err = readList(reader); err != nil {
		return nil, err
	}
	for _, dst := range []*string{&s.Device.Name, &s.Device.Type, &s.Device.OS, &s.Device.Browser, &s.Device.IPAddress} {
		if *dst, err = readString(reader); err != nil {
			return nil, err
		}
	}

	if err := binary.Read(reader, binary.BigEndian, &s.IssuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session payload")
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, name, v string) error {
	if len(v) > maxShortString {
		return fmt.Errorf("%s too long", name)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeList(buf *bytes.Buffer, name string, vs []string) error {
	if len(vs) > maxListLen {
		return fmt.Errorf("too many %s", name)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(vs))); err != nil {
		return err
	}
	for _, v := range vs {
		if err := writeString(buf, name, v); err != nil {
			return err
		}
	}
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func readList(r *bytes.Reader) ([]string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, err
	}
	// each element needs at least its length byte
	if int(n) > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		v, err := readString(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
