package awsKmsKeystore

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-vault-go/pkg/crypto"
	"github.com/Layr-Labs/eigenx-vault-go/pkg/types"
)

// KMSAPI is the subset of the KMS client the key store uses
type KMSAPI interface {
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	CreateKey(ctx context.Context, params *kms.CreateKeyInput, optFns ...func(*kms.Options)) (*kms.CreateKeyOutput, error)
	CreateAlias(ctx context.Context, params *kms.CreateAliasInput, optFns ...func(*kms.Options)) (*kms.CreateAliasOutput, error)
}

// AWSKMSKeyStore signs upload digests with an RSA_2048 SIGN_VERIFY key held in AWS KMS.
// The private key never leaves KMS.
type AWSKMSKeyStore struct {
	logger    *zap.Logger
	kmsClient KMSAPI
	keyId     string
	awsRegion string

	mu        sync.Mutex
	publicKey *rsa.PublicKey
}

func NewAWSKMSKeyStore(awsCfg aws.Config, keyId string, logger *zap.Logger) *AWSKMSKeyStore {
	return NewAWSKMSKeyStoreWithClient(kms.NewFromConfig(awsCfg), keyId, awsCfg.Region, logger)
}

func NewAWSKMSKeyStoreWithClient(client KMSAPI, keyId string, awsRegion string, logger *zap.Logger) *AWSKMSKeyStore {
	return &AWSKMSKeyStore{
		logger:    logger,
		kmsClient: client,
		keyId:     keyId,
		awsRegion: awsRegion,
	}
}

// SignDigest asks KMS to sign the digest and checks the result against the key's
// public half before returning it.
func (a *AWSKMSKeyStore) SignDigest(ctx context.Context, digest types.Digest) ([]byte, error) {
	pub, err := a.PublicKey(ctx)
	if err != nil {
		return nil, err
	}

	signOutput, err := a.kmsClient.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(a.keyId),
		Message:          digest.Bytes(),
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecRsassaPkcs1V15Sha256,
		MessageType:      kmstypes.MessageTypeDigest,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to sign digest with key %s in region %s", a.keyId, a.awsRegion)
	}

	if err := crypto.VerifyDigest(pub, digest, signOutput.Signature); err != nil {
		return nil, errors.Wrapf(err, "signature from key %s does not verify", a.keyId)
	}

	a.logger.Sugar().Debugw("Signed digest with KMS key",
		"key_id", a.keyId,
		"digest", digest.Hex(),
		"signature_len", len(signOutput.Signature),
	)
	return signOutput.Signature, nil
}

// PublicKey fetches the key's public half from KMS once and caches it
func (a *AWSKMSKeyStore) PublicKey(ctx context.Context) (*rsa.PublicKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.publicKey != nil {
		return a.publicKey, nil
	}

	out, err := a.kmsClient.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(a.keyId),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get public key for key %s in region %s", a.keyId, a.awsRegion)
	}

	if out.KeySpec != "" && out.KeySpec != kmstypes.KeySpecRsa2048 {
		return nil, fmt.Errorf("%w: key %s has spec %s, expected %s", crypto.ErrInvalidKey, a.keyId, out.KeySpec, kmstypes.KeySpecRsa2048)
	}

	pub, err := crypto.ParsePublicKey(out.PublicKey)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse public key for key %s in region %s", a.keyId, a.awsRegion)
	}

	a.publicKey = pub
	return pub, nil
}

// CreateSigningKey creates an RSA_2048 signing key suitable for this key store and
// points alias/<aliasName> at it. It returns the new key id.
func CreateSigningKey(ctx context.Context, client KMSAPI, keyName, aliasName string, logger *zap.Logger) (string, error) {
	keyRes, err := client.CreateKey(ctx, &kms.CreateKeyInput{
		KeyUsage:    kmstypes.KeyUsageTypeSignVerify,
		KeySpec:     kmstypes.KeySpecRsa2048,
		Description: aws.String(fmt.Sprintf("RSA key for signing vault uploads - %s", keyName)),
		Tags: []kmstypes.Tag{
			{
				TagKey:   aws.String("Name"),
				TagValue: aws.String(keyName),
			},
			{
				TagKey:   aws.String("Purpose"),
				TagValue: aws.String("vault-upload-signing"),
			},
			{
				TagKey:   aws.String("KeyType"),
				TagValue: aws.String("RSA"),
			},
		},
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create RSA key %s", keyName)
	}
	keyId := aws.ToString(keyRes.KeyMetadata.KeyId)

	if aliasName != "" {
		_, err = client.CreateAlias(ctx, &kms.CreateAliasInput{
			AliasName:   aws.String(fmt.Sprintf("alias/%s", aliasName)),
			TargetKeyId: aws.String(keyId),
		})
		if err != nil {
			return "", errors.Wrapf(err, "failed to create alias %s for key %s", aliasName, keyId)
		}
	}

	logger.Sugar().Infow("Created KMS signing key", "key_id", keyId, "alias", aliasName)
	return keyId, nil
}
