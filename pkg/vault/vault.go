// Package vault is the client-side protocol: it encrypts and signs files before
// upload, keeps the trusted top hash current, and checks inclusion proofs and
// signatures on the way back.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/envelope"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/keystore"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/transport"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/trustedroot"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

var (
	// ErrIntegrityMismatch is returned when an inclusion proof or a signature does not
	// check out against the trusted state
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrNoTrustedRoot is returned when an operation needs a trusted top hash and none
	// has been recorded
	ErrNoTrustedRoot = errors.New("no trusted root")
)

// IServer is the remote side of the protocol. *transport.Client implements it.
type IServer interface {
	Upload(ctx context.Context, name string, signedUpload []byte) (merkle.Proof, error)
	Read(ctx context.Context, name string) (merkle.Proof, []byte, error)
	TopHash(ctx context.Context) (types.Digest, error)
}

var _ IServer = (*transport.Client)(nil)

// Options controls the verification policy
type Options struct {
	// AllowIntegrityMismatch makes proof and signature failures on read non-fatal:
	// they are recorded in ReadResult.Warnings and decryption continues.
	AllowIntegrityMismatch bool
	// ConfirmUploadRoot asks the server for its top hash after an upload and refuses
	// to trust the reconstructed root unless the two agree.
	ConfirmUploadRoot bool
	// Now overrides the clock used for envelope timestamps
	Now func() time.Time
}

// Config holds everything a Vault needs
type Config struct {
	Server   IServer
	KeyStore keystore.IKeyStore
	Roots    trustedroot.ICache
	Password string
	Options  Options
	Logger   *zap.Logger
}

// Vault runs the upload, read and verify flows for one user
type Vault struct {
	server   IServer
	keys     keystore.IKeyStore
	roots    trustedroot.ICache
	password string
	opts     Options
	logger   *zap.Logger
}

// UploadResult describes an accepted upload
type UploadResult struct {
	FileID    types.FileID
	Leaf      types.Digest
	Proof     merkle.Proof
	TopHash   types.Digest
	Timestamp time.Time
	// PreviousRoot is the trusted root that was replaced, nil if there was none
	PreviousRoot *types.Digest
}

// ReadResult carries the decrypted file and the outcome of every integrity check
type ReadResult struct {
	Plaintext         []byte
	Timestamp         time.Time
	InclusionVerified bool
	SignatureVerified bool
	Warnings          []string
}

// Verified reports whether both the inclusion proof and the signature checked out
func (r *ReadResult) Verified() bool {
	return r.InclusionVerified && r.SignatureVerified
}

// VerifyResult is the outcome of comparing the server's top hash with the trusted one
type VerifyResult struct {
	ServerRoot  types.Digest
	TrustedRoot types.Digest
	// ServerEmpty is set when the server reports no stored files
	ServerEmpty bool
	Match       bool
}

// NewVault creates a new Vault
func NewVault(cfg Config) (*Vault, error) {
	if cfg.Server == nil {
		return nil, fmt.Errorf("server is required")
	}
	if cfg.KeyStore == nil {
		return nil, fmt.Errorf("key store is required")
	}
	if cfg.Roots == nil {
		return nil, fmt.Errorf("trusted root cache is required")
	}
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	opts := cfg.Options
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Vault{
		server:   cfg.Server,
		keys:     cfg.KeyStore,
		roots:    cfg.Roots,
		password: cfg.Password,
		opts:     opts,
		logger:   l,
	}, nil
}

// Upload encrypts data under a key derived from the password, signs the envelope,
// submits it as name and trusts the top hash reconstructed from the returned proof.
func (v *Vault) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	nonce, err := crypto.RandomBytes(crypto.NonceSize)
	if err != nil {
		return nil, err
	}
	iv, err := crypto.RandomBytes(crypto.IVSize)
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(v.password, nonce)
	if err != nil {
		return nil, err
	}

	fileID := types.FileIDFromName(name)
	ciphertext, err := crypto.Seal(key, iv, data, fileID.Bytes())
	if err != nil {
		return nil, err
	}

	env := &envelope.Envelope{
		Timestamp:  v.opts.Now().UnixMilli(),
		Ciphertext: ciphertext,
	}
	copy(env.Nonce[:], nonce)
	copy(env.IV[:], iv)
	envBytes := env.Encode()

	signature, err := v.keys.SignDigest(ctx, crypto.SHA256(envBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to sign envelope: %w", err)
	}
	upload := envelope.NewSignedUpload(signature, envBytes)
	leaf := upload.Digest()

	proof, err := v.server.Upload(ctx, name, upload.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", name, err)
	}

	root, err := merkle.Reconstruct(leaf, proof)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct top hash: %w", err)
	}

	if v.opts.ConfirmUploadRoot {
		serverRoot, err := v.server.TopHash(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to confirm top hash: %w", err)
		}
		if serverRoot != root {
			v.logger.Sugar().Warnw("Server top hash does not match upload proof",
				"file_id", fileID.Hex(),
				"reconstructed_top_hash", root.Hex(),
				"server_top_hash", serverRoot.Hex(),
			)
			return nil, fmt.Errorf("%w: server top hash %s does not match reconstructed %s",
				ErrIntegrityMismatch, serverRoot.Hex(), root.Hex())
		}
	}

	previous, err := v.roots.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted root: %w", err)
	}
	if err := v.roots.Set(ctx, &root); err != nil {
		return nil, fmt.Errorf("failed to store trusted root: %w", err)
	}

	v.logger.Sugar().Infow("Uploaded file",
		"file_id", fileID.Hex(),
		"leaf", leaf.Hex(),
		"top_hash", root.Hex(),
		"proof_steps", len(proof),
	)

	return &UploadResult{
		FileID:       fileID,
		Leaf:         leaf,
		Proof:        proof,
		TopHash:      root,
		Timestamp:    env.Time(),
		PreviousRoot: previous,
	}, nil
}

// Read fetches name, checks its inclusion proof against the trusted root and its
// signature against the key store's public key, then decrypts it. Integrity
// failures abort the read unless AllowIntegrityMismatch is set. A failed AEAD tag
// is always fatal.
func (v *Vault) Read(ctx context.Context, name string) (*ReadResult, error) {
	fileID := types.FileIDFromName(name)
	result := &ReadResult{}

	trusted, err := v.roots.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted root: %w", err)
	}
	if trusted == nil && !v.opts.AllowIntegrityMismatch {
		return nil, fmt.Errorf("%w: cannot check inclusion of %q", ErrNoTrustedRoot, name)
	}

	proof, blob, err := v.server.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", name, err)
	}

	leaf := crypto.SHA256(blob)
	switch {
	case trusted == nil:
		if err := v.flag(result, name, "no trusted top hash, inclusion not checked"); err != nil {
			return nil, err
		}
	case merkle.Verify(leaf, *trusted, proof):
		result.InclusionVerified = true
	default:
		if err := v.flag(result, name, fmt.Sprintf("inclusion proof does not lead to trusted top hash %s", trusted.Hex())); err != nil {
			return nil, err
		}
	}

	upload, err := envelope.ParseSignedUpload(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored upload: %w", err)
	}

	pub, err := v.keys.PublicKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load public key: %w", err)
	}
	if err := crypto.VerifyDigest(pub, upload.SignedDigest(), upload.Signature); err != nil {
		if err := v.flag(result, name, "envelope signature does not verify"); err != nil {
			return nil, err
		}
	} else {
		result.SignatureVerified = true
	}

	env, err := upload.Envelope()
	if err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	key, err := crypto.DeriveKey(v.password, env.Nonce[:])
	if err != nil {
		return nil, err
	}
	plaintext, err := crypto.Open(key, env.IV[:], env.Ciphertext, fileID.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %q: %w", name, err)
	}

	result.Plaintext = plaintext
	result.Timestamp = env.Time()

	v.logger.Sugar().Debugw("Read file",
		"file_id", fileID.Hex(),
		"leaf", leaf.Hex(),
		"inclusion_verified", result.InclusionVerified,
		"signature_verified", result.SignatureVerified,
	)
	return result, nil
}

// flag records an integrity failure. Under the strict policy it returns the error
// that aborts the read.
func (v *Vault) flag(result *ReadResult, name, warning string) error {
	v.logger.Sugar().Warnw("Integrity check failed",
		"name", name,
		"warning", warning,
		"allow_integrity_mismatch", v.opts.AllowIntegrityMismatch,
	)
	if !v.opts.AllowIntegrityMismatch {
		return fmt.Errorf("%w: %s: %s", ErrIntegrityMismatch, name, warning)
	}
	result.Warnings = append(result.Warnings, warning)
	return nil
}

// Verify compares the server's current top hash with the trusted one
func (v *Vault) Verify(ctx context.Context) (*VerifyResult, error) {
	trusted, err := v.roots.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load trusted root: %w", err)
	}
	if trusted == nil {
		return nil, ErrNoTrustedRoot
	}

	result := &VerifyResult{TrustedRoot: *trusted}
	serverRoot, err := v.server.TopHash(ctx)
	switch {
	case transport.IsNotFound(err):
		result.ServerEmpty = true
	case err != nil:
		return nil, fmt.Errorf("failed to fetch server top hash: %w", err)
	default:
		result.ServerRoot = serverRoot
		result.Match = serverRoot == *trusted
	}

	if !result.Match {
		v.logger.Sugar().Warnw("Server top hash does not match trusted top hash",
			"trusted_top_hash", trusted.Hex(),
			"server_top_hash", result.ServerRoot.Hex(),
			"server_empty", result.ServerEmpty,
		)
	}
	return result, nil
}

// TrustedRoot returns the current trusted top hash, nil if none is recorded
func (v *Vault) TrustedRoot(ctx context.Context) (*types.Digest, error) {
	return v.roots.Get(ctx)
}

// PinRoot trusts root explicitly, for a device that learned it out of band
func (v *Vault) PinRoot(ctx context.Context, root types.Digest) error {
	if err := v.roots.Set(ctx, &root); err != nil {
		return fmt.Errorf("failed to pin trusted root: %w", err)
	}
	v.logger.Sugar().Infow("Pinned trusted root", "top_hash", root.Hex())
	return nil
}

// ForgetRoot clears the trusted top hash
func (v *Vault) ForgetRoot(ctx context.Context) error {
	if err := v.roots.Set(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear trusted root: %w", err)
	}
	v.logger.Sugar().Infow("Cleared trusted root")
	return nil
}
