// Store encrypts the user and the password of the signaling endpoint using Crypto, and
// writes the result to a local file named File (see: Save()). It also decrypts File
// back (see: Load()).
//
// The plain value is presented as "${len(user)}${user}${len(pass)}${pass}" with
// one-byte lengths (see: writeField() and readField()).

package credentials

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

type Crypto interface {
	Encrypt([]byte) ([]byte, error)
	Decrypt([]byte) ([]byte, error)
}

type Store struct {
	cfg StoreConfig

	crypto Crypto
}

type StoreConfig struct {
	File string
}

var ErrFieldTooLong = errors.New("credential longer than 255 bytes")

func NewStore(cfg StoreConfig, crypto Crypto) *Store {
	return &Store{
		cfg:    cfg,
		crypto: crypto,
	}
}

func (s *Store) Save(user, pass string) error {
	buf := &bytes.Buffer{}

	if err := s.writeField(buf, user); err != nil {
		return errors.Wrap(err, "user")
	}

	if err := s.writeField(buf, pass); err != nil {
		return errors.Wrap(err, "pass")
	}

	encrypted, err := s.crypto.Encrypt(buf.Bytes())
	if err != nil {
		return err
	}

	return os.WriteFile(s.cfg.File, encrypted, 0600)
}

func (s *Store) Load() (user, pass string, err error) {
	payload, err := os.ReadFile(s.cfg.File)
	if err != nil {
		return "", "", err
	}

	decrypted, err := s.crypto.Decrypt(payload)
	if err != nil {
		return "", "", errors.Wrap(err, s.cfg.File)
	}

	buf := bytes.NewReader(decrypted)

	if user, err = s.readField(buf); err != nil {
		return "", "", errors.Wrap(err, "user")
	}

	if pass, err = s.readField(buf); err != nil {
		return "", "", errors.Wrap(err, "pass")
	}

	return user, pass, nil
}

func (s *Store) writeField(w io.Writer, value string) error {
	if len(value) > math.MaxUint8 {
		return ErrFieldTooLong
	}

	if err := binary.Write(w, binary.BigEndian, uint8(len(value))); err != nil {
		return err
	}

	_, err := io.WriteString(w, value)

	return err
}

func (s *Store) readField(r io.Reader) (string, error) {
	var length uint8

	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return "", err
	}

	b := make([]byte, length)

	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}

	return string(b), nil
}
