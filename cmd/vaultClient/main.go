package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	internalaws "github.com/Layr-Labs/eigenx-vault-go/internal/aws"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/config"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/keystore"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/keystore/awsKmsKeystore"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/keystore/localKeystore"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/transport"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/trustedroot"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/vault"
)

// exitMismatch is returned by verify when the server's top hash differs from the trusted one
const exitMismatch = 2

func main() {
	app := &cli.App{
		Name:  "vault-client",
		Usage: "Client for the tamper-evident encrypted file store",
		Description: `Encrypts files locally, signs them and uploads them to a vault server.

The client keeps the last accepted top hash in its client directory and
checks every read against it:
- upload: encrypt, sign, upload and trust the new top hash
- read: fetch, check inclusion and signature, decrypt
- verify: compare the server's top hash with the trusted one`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Value:   config.DefaultServerURL,
				Usage:   "Vault server base URL",
				EnvVars: []string{config.EnvVaultServerURL},
			},
			&cli.StringFlag{
				Name:    "client-dir",
				Value:   defaultClientDir(),
				Usage:   "Directory holding the signing key pair and the trusted top hash",
				EnvVars: []string{config.EnvVaultClientDir},
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Password used to derive per-file encryption keys",
				EnvVars: []string{config.EnvVaultPassword},
			},
			&cli.StringFlag{
				Name:    "signer",
				Value:   string(keystore.SignerTypeLocal),
				Usage:   "Upload signer: local or aws-kms",
				EnvVars: []string{config.EnvVaultSigner},
			},
			&cli.StringFlag{
				Name:    "kms-key-id",
				Usage:   "KMS key id or alias for the aws-kms signer",
				EnvVars: []string{config.EnvVaultKMSKeyID},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override for the aws-kms signer",
				EnvVars: []string{config.EnvVaultAWSRegion},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Value:   config.DefaultRequestTimeout,
				Usage:   "Timeout for a single request to the server",
				EnvVars: []string{config.EnvVaultTimeout},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvVaultVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Encrypt, sign and upload a file",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Name to store the file under (default: base name of path)",
					},
					&cli.BoolFlag{
						Name:  "confirm-root",
						Usage: "Only trust the new top hash if the server reports the same one",
					},
				},
				Action: uploadCommand,
			},
			{
				Name:      "read",
				Usage:     "Download, verify and decrypt a file",
				ArgsUsage: "<name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output file for decrypted data (default: stdout)",
					},
					&cli.BoolFlag{
						Name:  "allow-tampered",
						Usage: "Decrypt even if the inclusion proof or signature does not verify",
					},
				},
				Action: readCommand,
			},
			{
				Name:   "health",
				Usage:  "Check that the server and its storage are reachable",
				Action: healthCommand,
			},
			{
				Name:   "verify",
				Usage:  "Compare the server's top hash with the trusted one",
				Action: verifyCommand,
			},
			{
				Name:  "pin-root",
				Usage: "Trust a top hash learned out of band",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "root",
						Usage:    "Top hash as 0x-prefixed hex",
						Required: true,
					},
				},
				Action: pinRootCommand,
			},
			{
				Name:   "forget-root",
				Usage:  "Clear the trusted top hash",
				Action: forgetRootCommand,
			},
			{
				Name:   "show-root",
				Usage:  "Print the trusted top hash",
				Action: showRootCommand,
			},
			{
				Name:  "create-kms-key",
				Usage: "Create an RSA signing key in AWS KMS for the aws-kms signer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "key-name",
						Usage:    "Name tag for the new key",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "alias",
						Usage: "Alias to point at the new key (without the alias/ prefix)",
					},
				},
				Action: createKMSKeyCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func defaultClientDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vault"
	}
	return filepath.Join(home, ".vault")
}

func parseClientConfig(c *cli.Context) *config.VaultClientConfig {
	return &config.VaultClientConfig{
		ServerURL: c.String("server-url"),
		ClientDir: c.String("client-dir"),
		Password:  c.String("password"),
		Signer:    keystore.SignerType(c.String("signer")),
		KMSKeyID:  c.String("kms-key-id"),
		AWSRegion: c.String("aws-region"),

		RequestTimeout: c.Duration("timeout"),

		Verbose: c.Bool("verbose"),
	}
}

// createVault creates a vault from CLI context
func createVault(c *cli.Context, requirePassword bool, opts vault.Options) (*vault.Vault, *zap.Logger, error) {
	cfg := parseClientConfig(c)
	if err := cfg.Validate(requirePassword); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	if err := os.MkdirAll(cfg.ClientDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create client directory: %w", err)
	}

	keys, err := createKeyStore(c.Context, cfg, l)
	if err != nil {
		return nil, nil, err
	}

	v, err := vault.NewVault(vault.Config{
		Server:   newTransportClient(cfg, l),
		KeyStore: keys,
		Roots:    trustedroot.NewFileCache(cfg.ClientDir),
		Password: cfg.Password,
		Options:  opts,
		Logger:   l,
	})
	if err != nil {
		return nil, nil, err
	}
	return v, l, nil
}

func newTransportClient(cfg *config.VaultClientConfig, l *zap.Logger) *transport.Client {
	return transport.NewClient(cfg.ServerURL, l).
		WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout})
}

func createKeyStore(ctx context.Context, cfg *config.VaultClientConfig, l *zap.Logger) (keystore.IKeyStore, error) {
	switch cfg.Signer {
	case keystore.SignerTypeAWSKMS:
		awsCfg, err := loadAWSConfig(ctx, cfg.AWSRegion, l)
		if err != nil {
			return nil, err
		}
		return awsKmsKeystore.NewAWSKMSKeyStore(awsCfg, cfg.KMSKeyID, l), nil
	default:
		return localKeystore.NewLocalKeyStore(cfg.ClientDir, l), nil
	}
}

func loadAWSConfig(ctx context.Context, region string, l *zap.Logger) (aws.Config, error) {
	awsCfg, err := internalaws.LoadAWSConfig(ctx, region)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if identity, err := internalaws.GetCallerIdentity(ctx, awsCfg); err != nil {
		l.Sugar().Warnw("Failed to resolve AWS caller identity", "error", err)
	} else {
		l.Sugar().Debugw("Using AWS identity", "arn", aws.ToString(identity.Arn), "region", awsCfg.Region)
	}
	return awsCfg, nil
}

func uploadCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("file path is required")
	}
	name := c.String("name")
	if name == "" {
		name = filepath.Base(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	v, l, err := createVault(c, true, vault.Options{ConfirmUploadRoot: c.Bool("confirm-root")})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	res, err := v.Upload(c.Context, name, data)
	if err != nil {
		return err
	}

	fmt.Printf("Uploaded %s (%d bytes)\n", name, len(data))
	fmt.Printf("File ID:  %s\n", hexutil.Encode(res.FileID.Bytes()))
	fmt.Printf("Top hash: %s\n", hexutil.Encode(res.TopHash.Bytes()))
	if res.PreviousRoot != nil {
		fmt.Printf("Replaced: %s\n", hexutil.Encode(res.PreviousRoot.Bytes()))
	}
	return nil
}

func readCommand(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("file name is required")
	}

	v, l, err := createVault(c, true, vault.Options{AllowIntegrityMismatch: c.Bool("allow-tampered")})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	res, err := v.Read(c.Context, name)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "WARNING: %s\n", w)
	}

	if output := c.String("output"); output != "" {
		if err := os.WriteFile(output, res.Plaintext, 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s (uploaded %s)\n", len(res.Plaintext), output, res.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"))
		return nil
	}
	_, err = os.Stdout.Write(res.Plaintext)
	return err
}

func healthCommand(c *cli.Context) error {
	cfg := parseClientConfig(c)
	if err := cfg.Validate(false); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Verbose})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	client := newTransportClient(cfg, l)
	if err := client.Health(c.Context); err != nil {
		return cli.Exit(fmt.Sprintf("server %s is unhealthy: %v", client.BaseURL(), err), 1)
	}
	fmt.Printf("Server %s is healthy\n", client.BaseURL())
	return nil
}

func verifyCommand(c *cli.Context) error {
	v, l, err := createVault(c, false, vault.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	res, err := v.Verify(c.Context)
	if err != nil {
		if errors.Is(err, vault.ErrNoTrustedRoot) {
			return cli.Exit("no trusted top hash recorded; upload a file or run pin-root first", 1)
		}
		return err
	}

	fmt.Printf("Trusted:  %s\n", hexutil.Encode(res.TrustedRoot.Bytes()))
	if res.ServerEmpty {
		fmt.Printf("Server:   (empty)\n")
	} else {
		fmt.Printf("Server:   %s\n", hexutil.Encode(res.ServerRoot.Bytes()))
	}
	if !res.Match {
		return cli.Exit("top hash mismatch: server state differs from the trusted state", exitMismatch)
	}
	fmt.Println("OK: server top hash matches the trusted top hash")
	return nil
}

func pinRootCommand(c *cli.Context) error {
	raw, err := hexutil.Decode(c.String("root"))
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	root, err := types.DigestFromBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}

	v, l, err := createVault(c, false, vault.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	if err := v.PinRoot(c.Context, root); err != nil {
		return err
	}
	fmt.Printf("Pinned top hash %s\n", hexutil.Encode(root.Bytes()))
	return nil
}

func forgetRootCommand(c *cli.Context) error {
	v, l, err := createVault(c, false, vault.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	if err := v.ForgetRoot(c.Context); err != nil {
		return err
	}
	fmt.Println("Cleared trusted top hash")
	return nil
}

func showRootCommand(c *cli.Context) error {
	v, l, err := createVault(c, false, vault.Options{})
	if err != nil {
		return err
	}
	defer func() { _ = l.Sync() }()

	root, err := v.TrustedRoot(c.Context)
	if err != nil {
		return err
	}
	if root == nil {
		fmt.Println("(none)")
		return nil
	}
	fmt.Println(hexutil.Encode(root.Bytes()))
	return nil
}

func createKMSKeyCommand(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	awsCfg, err := loadAWSConfig(c.Context, c.String("aws-region"), l)
	if err != nil {
		return err
	}

	keyId, err := awsKmsKeystore.CreateSigningKey(c.Context, kms.NewFromConfig(awsCfg), c.String("key-name"), c.String("alias"), l)
	if err != nil {
		return err
	}
	fmt.Printf("Created KMS key %s\n", keyId)
	fmt.Printf("Use it with: --signer %s --kms-key-id %s\n", keystore.SignerTypeAWSKMS, keyId)
	return nil
}
