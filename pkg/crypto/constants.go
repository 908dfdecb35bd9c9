package crypto

const (
	// NonceSize is the size of the per-upload KDF salt in bytes
	NonceSize = 16
	// IVSize is the size of an AES-GCM IV in bytes
	IVSize = 12
	// TagSize is the size of an AES-GCM authentication tag in bytes
	TagSize = 16
	// KeySize is the size of the derived AES-256 key in bytes
	KeySize = 32

	// PBKDF2Iterations is the PBKDF2-HMAC-SHA-256 work factor
	PBKDF2Iterations = 65536

	// RSAKeyBits is the modulus size of generated signing keys
	RSAKeyBits = 2048
)
