package localKeystore

import (
	"context"
	"crypto/rsa"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

const (
	PrivateKeyFile = "private_key.bin"
	PublicKeyFile  = "public_key.pub"
)

// LocalKeyStore keeps an RSA key pair in a client directory. The pair is generated
// on first use and written as PKCS#8 DER (private) and PKIX DER (public).
type LocalKeyStore struct {
	logger *zap.Logger
	dir    string

	mu         sync.Mutex
	privateKey *rsa.PrivateKey
}

func NewLocalKeyStore(dir string, logger *zap.Logger) *LocalKeyStore {
	return &LocalKeyStore{
		logger: logger,
		dir:    dir,
	}
}

func (l *LocalKeyStore) SignDigest(ctx context.Context, digest types.Digest) ([]byte, error) {
	key, err := l.loadOrGenerate()
	if err != nil {
		return nil, err
	}

	sig, err := crypto.SignDigest(key, digest)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign digest %s", digest.Hex())
	}

	l.logger.Sugar().Debugw("Signed digest with local key", "digest", digest.Hex(), "signature_len", len(sig))
	return sig, nil
}

func (l *LocalKeyStore) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	key, err := l.loadOrGenerate()
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// loadOrGenerate returns the cached key, reading it from disk or creating a new
// pair when the private key file does not exist.
func (l *LocalKeyStore) loadOrGenerate() (*rsa.PrivateKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.privateKey != nil {
		return l.privateKey, nil
	}

	privatePath := filepath.Join(l.dir, PrivateKeyFile)
	publicPath := filepath.Join(l.dir, PublicKeyFile)

	der, err := os.ReadFile(privatePath)
	switch {
	case err == nil:
		key, err := crypto.ParsePrivateKey(der)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse private key at %s", privatePath)
		}
		if _, statErr := os.Stat(publicPath); os.IsNotExist(statErr) {
			if err := l.writePublicKey(publicPath, &key.PublicKey); err != nil {
				return nil, err
			}
		}
		l.privateKey = key
		return key, nil

	case os.IsNotExist(err):
		return l.generateLocked(privatePath, publicPath)

	default:
		return nil, errors.Wrapf(err, "failed to read private key at %s", privatePath)
	}
}

func (l *LocalKeyStore) generateLocked(privatePath, publicPath string) (*rsa.PrivateKey, error) {
	if _, err := os.Stat(publicPath); err == nil {
		l.logger.Sugar().Warnw("Public key exists without a private key, replacing both", "path", publicPath)
	}

	key, err := crypto.GenerateRSAKey()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate key pair")
	}

	der, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(l.dir, 0o700); err != nil {
		return nil, errors.Wrapf(err, "failed to create key directory %s", l.dir)
	}
	if err := os.WriteFile(privatePath, der, 0o600); err != nil {
		return nil, errors.Wrapf(err, "failed to write private key to %s", privatePath)
	}
	if err := l.writePublicKey(publicPath, &key.PublicKey); err != nil {
		return nil, err
	}

	l.logger.Sugar().Infow("Generated new RSA key pair", "dir", l.dir, "bits", crypto.RSAKeyBits)
	l.privateKey = key
	return key, nil
}

func (l *LocalKeyStore) writePublicKey(path string, pub *rsa.PublicKey) error {
	der, err := crypto.MarshalPublicKey(pub)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, der, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write public key to %s", path)
	}
	return nil
}

// LoadPublicKey reads a public key written by a LocalKeyStore, for readers that
// verify uploads without holding the private key.
func LoadPublicKey(dir string) (*rsa.PublicKey, error) {
	path := filepath.Join(dir, PublicKeyFile)
	der, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read public key at %s", path)
	}
	pub, err := crypto.ParsePublicKey(der)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key at %s", path)
	}
	return pub, nil
}
