package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"github.com/zenazn/pkcs7pad"
)

// AesCbc encrypts payloads with a fresh random IV which is prepended to the output.
type AesCbc struct {
	cipher cipher.Block
}

type AesCbcConfig struct {
	// Key is 16, 24 or 32 bytes long.
	Key []byte
}

var ErrCiphertext = errors.New("malformed ciphertext")

func NewAesCbc(cfg AesCbcConfig) (*AesCbc, error) {
	block, err := aes.NewCipher(cfg.Key)
	if err != nil {
		return nil, err
	}

	return &AesCbc{
		cipher: block,
	}, nil
}

func (c *AesCbc) Encrypt(payload []byte) ([]byte, error) {
	size := c.cipher.BlockSize()
	payload = pkcs7pad.Pad(payload, size)

	encrypted := make([]byte, size+len(payload))
	iv := encrypted[:size]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, errors.Wrap(err, "iv")
	}

	cipher.NewCBCEncrypter(c.cipher, iv).CryptBlocks(encrypted[size:], payload)

	return encrypted, nil
}

func (c *AesCbc) Decrypt(payload []byte) ([]byte, error) {
	size := c.cipher.BlockSize()

	if len(payload) < 2*size || len(payload)%size != 0 {
		return nil, ErrCiphertext
	}

	iv, payload := payload[:size], payload[size:]
	decrypted := make([]byte, len(payload))

	cipher.NewCBCDecrypter(c.cipher, iv).CryptBlocks(decrypted, payload)

	return pkcs7pad.Unpad(decrypted)
}
