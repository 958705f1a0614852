package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"land-registry/registry-backend/internal/blockchain"
	"land-registry/registry-backend/internal/config"
	"land-registry/registry-backend/internal/notifications"
	"land-registry/registry-backend/pkg/storage"
)

// NewFileStore returns the configured upload store.
func NewFileStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.FileStore, error) {
	switch cfg.Backend {
	case "s3":
		s, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Using S3 file store", zap.String("bucket", cfg.S3Bucket), zap.String("prefix", cfg.S3Prefix))
		return s, nil
	case "local", "":
		logger.Info("Using local file store", zap.String("dir", cfg.LocalDir))
		return storage.NewLocalStore(cfg.LocalDir), nil
	}
	return nil, fmt.Errorf("unsupported storage backend %q", cfg.Backend)
}

// DialChain connects to the PropertyTransfer and LandRegistry contracts.
// Without a private key or contract address the returned client fails every
// chain call, so finalization reports an external service error instead of
// the process refusing to start.
func DialChain(ctx context.Context, cfg config.BlockchainConfig, logger *zap.Logger) (blockchain.Chain, func(), error) {
	if cfg.PrivateKey == "" || cfg.ContractAddress == "" {
		logger.Warn("Blockchain is not configured; finalization will fail until it is")
		return blockchain.Unconfigured{}, func() {}, nil
	}

	c, err := blockchain.DialEthereum(ctx, blockchain.EthereumConfig{
		RPCURL:          cfg.RPCURL,
		PrivateKey:      cfg.PrivateKey,
		ContractAddress: cfg.ContractAddress,
		RegistryAddress: cfg.RegistryAddress,
		ChainID:         cfg.ChainID,
		GasLimit:        cfg.GasLimit,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// EmailChannels returns the SES channel when email notifications are on.
func EmailChannels(ctx context.Context, cfg config.NotificationsConfig, logger *zap.Logger) ([]notifications.Channel, error) {
	if !cfg.EmailEnabled {
		return nil, nil
	}
	ch, err := notifications.NewEmailChannel(ctx, cfg.SESRegion, cfg.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to set up email notifications: %w", err)
	}
	logger.Info("Email notifications enabled", zap.String("from", cfg.FromAddress))
	return []notifications.Channel{ch}, nil
}
