package blockchain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// propertyTransferABI covers the PropertyTransfer methods the registry calls.
const propertyTransferABI = `[{
	"type": "function",
	"name": "createTransaction",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "propertyIdentifier", "type": "string"},
		{"name": "buyer", "type": "address"},
		{"name": "price", "type": "uint256"},
		{"name": "terms", "type": "string"}
	],
	"outputs": []
}, {
	"type": "function",
	"name": "getTotalTransactions",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [{"name": "", "type": "uint256"}]
}]`

// landRegistryABI covers the LandRegistry methods and the registration event.
const landRegistryABI = `[{
	"type": "function",
	"name": "registerProperty",
	"stateMutability": "nonpayable",
	"inputs": [
		{"name": "propertyIdentifier", "type": "string"},
		{"name": "owner", "type": "address"},
		{"name": "location", "type": "string"},
		{"name": "landArea", "type": "uint256"},
		{"name": "propertyType", "type": "string"},
		{"name": "legalDescription", "type": "string"},
		{"name": "documentHash", "type": "string"}
	],
	"outputs": [{"name": "", "type": "uint256"}]
}, {
	"type": "function",
	"name": "approveProperty",
	"stateMutability": "nonpayable",
	"inputs": [{"name": "propertyId", "type": "uint256"}],
	"outputs": []
}, {
	"type": "function",
	"name": "getProperty",
	"stateMutability": "view",
	"inputs": [{"name": "propertyId", "type": "uint256"}],
	"outputs": [{"name": "", "type": "tuple", "components": [
		{"name": "propertyId", "type": "uint256"},
		{"name": "propertyIdentifier", "type": "string"},
		{"name": "owner", "type": "address"},
		{"name": "location", "type": "string"},
		{"name": "landArea", "type": "uint256"},
		{"name": "propertyType", "type": "string"},
		{"name": "legalDescription", "type": "string"},
		{"name": "documentHash", "type": "string"},
		{"name": "registrationTimestamp", "type": "uint256"},
		{"name": "isActive", "type": "bool"},
		{"name": "isApproved", "type": "bool"},
		{"name": "approvedBy", "type": "address"}
	]}]
}, {
	"type": "function",
	"name": "verifyOwnership",
	"stateMutability": "view",
	"inputs": [
		{"name": "propertyId", "type": "uint256"},
		{"name": "owner", "type": "address"}
	],
	"outputs": [{"name": "", "type": "bool"}]
}, {
	"type": "function",
	"name": "getTotalProperties",
	"stateMutability": "view",
	"inputs": [],
	"outputs": [{"name": "", "type": "uint256"}]
}, {
	"type": "event",
	"name": "PropertyRegistered",
	"anonymous": false,
	"inputs": [
		{"name": "propertyId", "type": "uint256", "indexed": true},
		{"name": "propertyIdentifier", "type": "string", "indexed": false},
		{"name": "owner", "type": "address", "indexed": true},
		{"name": "location", "type": "string", "indexed": false},
		{"name": "landArea", "type": "uint256", "indexed": false}
	]
}]`

var (
	transferABI = mustParseABI(propertyTransferABI)
	registryABI = mustParseABI(landRegistryABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract abi: %v", err))
	}
	return parsed
}

// landRecord mirrors the getProperty tuple.
type landRecord struct {
	PropertyId            *big.Int
	PropertyIdentifier    string
	Owner                 common.Address
	Location              string
	LandArea              *big.Int
	PropertyType          string
	LegalDescription      string
	DocumentHash          string
	RegistrationTimestamp *big.Int
	IsActive              bool
	IsApproved            bool
	ApprovedBy            common.Address
}

// EthereumConfig holds the connection settings for an EVM chain.
// RegistryAddress is optional; without it the Registry methods return
// ErrNotConfigured.
type EthereumConfig struct {
	RPCURL          string
	PrivateKey      string
	ContractAddress string
	RegistryAddress string
	ChainID         int64
	GasLimit        uint64
}

type contract interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
}

type headReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type receiptWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// EthereumClient talks to the PropertyTransfer and LandRegistry contracts.
type EthereumClient struct {
	transfers    contract
	registry     contract
	head         headReader
	wait         receiptWaiter
	key          *ecdsa.PrivateKey
	chainID      *big.Int
	gasLimit     uint64
	transferAddr string
	registryAddr string
	closer       func()
	logger       *zap.Logger
}

// DialEthereum connects to the RPC endpoint and binds the contracts.
func DialEthereum(ctx context.Context, cfg EthereumConfig, logger *zap.Logger) (*EthereumClient, error) {
	if !IsValidAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", cfg.ContractAddress)
	}
	if cfg.RegistryAddress != "" && !IsValidAddress(cfg.RegistryAddress) {
		return nil, fmt.Errorf("invalid registry address %q", cfg.RegistryAddress)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
	}

	transfers := bind.NewBoundContract(common.HexToAddress(cfg.ContractAddress), transferABI, rpc, rpc, rpc)

	client := newEthereumClient(transfers, func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, rpc, tx)
	}, key, big.NewInt(cfg.ChainID), cfg.GasLimit, logger)
	client.head = rpc
	client.transferAddr = cfg.ContractAddress
	client.closer = rpc.Close
	if cfg.RegistryAddress != "" {
		client.registry = bind.NewBoundContract(common.HexToAddress(cfg.RegistryAddress), registryABI, rpc, rpc, rpc)
		client.registryAddr = cfg.RegistryAddress
	}

	logger.Info("Connected to blockchain",
		zap.String("rpc_url", cfg.RPCURL),
		zap.Int64("chain_id", cfg.ChainID),
		zap.String("contract", cfg.ContractAddress),
		zap.String("registry", cfg.RegistryAddress),
		zap.String("signer", crypto.PubkeyToAddress(key.PublicKey).Hex()))

	return client, nil
}

func newEthereumClient(transfers contract, wait receiptWaiter, key *ecdsa.PrivateKey, chainID *big.Int, gasLimit uint64, logger *zap.Logger) *EthereumClient {
	return &EthereumClient{
		transfers: transfers,
		wait:      wait,
		key:       key,
		chainID:   chainID,
		gasLimit:  gasLimit,
		closer:    func() {},
		logger:    logger,
	}
}

// sent is the outcome of one signed contract call. Failure is empty when
// the transaction was mined successfully.
type sent struct {
	hash    string
	gasUsed uint64
	receipt *types.Receipt
	failure string
}

// send signs method, submits it and waits for the receipt. A submission the
// node refuses or a reverted transaction is a failure, not an error.
func (c *EthereumClient) send(ctx context.Context, target contract, method string, params ...interface{}) (*sent, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = c.gasLimit

	tx, err := target.Transact(opts, method, params...)
	if err != nil {
		c.logger.Warn("Blockchain transaction rejected",
			zap.String("method", method),
			zap.Error(err))
		return &sent{failure: err.Error()}, nil
	}

	c.logger.Info("Blockchain transaction sent",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()))

	receipt, err := c.wait(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for %s: %w", tx.Hash().Hex(), err)
	}

	out := &sent{hash: tx.Hash().Hex(), gasUsed: receipt.GasUsed, receipt: receipt}
	if receipt.Status != types.ReceiptStatusSuccessful {
		out.failure = "transaction reverted"
	}
	return out, nil
}

// SubmitTransfer sends createTransaction and waits for it to be mined.
// A reverted transaction is reported as an unsuccessful result, not an error.
func (c *EthereumClient) SubmitTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	price, err := ParseEther(req.Price)
	if err != nil {
		return nil, err
	}

	res, err := c.send(ctx, c.transfers, "createTransaction",
		req.PropertyID, common.HexToAddress(req.BuyerAddress), price, req.Terms)
	if err != nil {
		return nil, err
	}
	return &TransferResult{
		Success: res.failure == "",
		TxHash:  res.hash,
		GasUsed: res.gasUsed,
		Error:   res.failure,
	}, nil
}

// Close releases the RPC connection.
func (c *EthereumClient) Close() {
	c.closer()
}

// RegisterProperty records a property on the LandRegistry and reads the
// assigned chain id from the PropertyRegistered event.
func (c *EthereumClient) RegisterProperty(ctx context.Context, rec PropertyRecord) (*RegistryResult, error) {
	if c.registry == nil {
		return nil, ErrNotConfigured
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	res, err := c.send(ctx, c.registry, "registerProperty",
		rec.PropertyID, common.HexToAddress(rec.OwnerAddress), rec.Location,
		new(big.Int).SetUint64(rec.LandArea), rec.PropertyType, rec.LegalDescription, rec.DocumentHash)
	if err != nil {
		return nil, err
	}
	out := &RegistryResult{Success: res.failure == "", TxHash: res.hash, GasUsed: res.gasUsed, Error: res.failure}
	if !out.Success {
		return out, nil
	}

	out.ChainPropertyID = registeredID(res.receipt)
	if out.ChainPropertyID == 0 {
		c.logger.Warn("PropertyRegistered event missing from receipt",
			zap.String("property_id", rec.PropertyID),
			zap.String("tx_hash", res.hash))
	}
	return out, nil
}

func registeredID(receipt *types.Receipt) uint64 {
	event := registryABI.Events["PropertyRegistered"].ID
	for _, l := range receipt.Logs {
		if len(l.Topics) > 1 && l.Topics[0] == event {
			return new(big.Int).SetBytes(l.Topics[1].Bytes()).Uint64()
		}
	}
	return 0
}

// ApproveProperty marks a registered property approved on chain.
func (c *EthereumClient) ApproveProperty(ctx context.Context, chainPropertyID uint64) (*RegistryResult, error) {
	if c.registry == nil {
		return nil, ErrNotConfigured
	}
	res, err := c.send(ctx, c.registry, "approveProperty", new(big.Int).SetUint64(chainPropertyID))
	if err != nil {
		return nil, err
	}
	return &RegistryResult{
		Success:         res.failure == "",
		ChainPropertyID: chainPropertyID,
		TxHash:          res.hash,
		GasUsed:         res.gasUsed,
		Error:           res.failure,
	}, nil
}

// GetProperty reads a property record. An empty record is ErrPropertyNotFound.
func (c *EthereumClient) GetProperty(ctx context.Context, chainPropertyID uint64) (*ChainProperty, error) {
	if c.registry == nil {
		return nil, ErrNotConfigured
	}
	var out []interface{}
	if err := c.registry.Call(&bind.CallOpts{Context: ctx}, &out, "getProperty", new(big.Int).SetUint64(chainPropertyID)); err != nil {
		return nil, fmt.Errorf("getProperty(%d): %w", chainPropertyID, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("getProperty(%d): empty result", chainPropertyID)
	}
	rec := *abi.ConvertType(out[0], new(landRecord)).(*landRecord)
	if rec.PropertyId == nil || rec.PropertyId.Sign() == 0 {
		return nil, ErrPropertyNotFound
	}

	id, err := toUint64(rec.PropertyId)
	if err != nil {
		return nil, err
	}
	p := &ChainProperty{
		ChainPropertyID:  id,
		PropertyID:       rec.PropertyIdentifier,
		Owner:            rec.Owner.Hex(),
		Location:         rec.Location,
		PropertyType:     rec.PropertyType,
		LegalDescription: rec.LegalDescription,
		DocumentHash:     rec.DocumentHash,
		IsActive:         rec.IsActive,
		IsApproved:       rec.IsApproved,
		ApprovedBy:       rec.ApprovedBy.Hex(),
	}
	if rec.LandArea != nil {
		p.LandArea = rec.LandArea.String()
	}
	if rec.RegistrationTimestamp != nil {
		p.RegistrationTimestamp = rec.RegistrationTimestamp.Int64()
	}
	return p, nil
}

// VerifyOwnership reports whether owner holds the property on chain.
func (c *EthereumClient) VerifyOwnership(ctx context.Context, chainPropertyID uint64, owner string) (bool, error) {
	if c.registry == nil {
		return false, ErrNotConfigured
	}
	if !IsValidAddress(owner) {
		return false, fmt.Errorf("invalid owner wallet address %q", owner)
	}
	var out []interface{}
	err := c.registry.Call(&bind.CallOpts{Context: ctx}, &out, "verifyOwnership",
		new(big.Int).SetUint64(chainPropertyID), common.HexToAddress(owner))
	if err != nil {
		return false, fmt.Errorf("verifyOwnership(%d): %w", chainPropertyID, err)
	}
	if len(out) == 0 {
		return false, fmt.Errorf("verifyOwnership(%d): empty result", chainPropertyID)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// Stats reports the chain head and the record counts of both contracts.
// Without a registry contract TotalProperties stays zero.
func (c *EthereumClient) Stats(ctx context.Context) (*NetworkStats, error) {
	stats := &NetworkStats{
		ChainID:         c.chainID.Int64(),
		TransferAddress: c.transferAddr,
		RegistryAddress: c.registryAddr,
	}
	if c.head != nil {
		n, err := c.head.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read block number: %w", err)
		}
		stats.BlockNumber = n
	}

	total, err := c.count(ctx, c.transfers, "getTotalTransactions")
	if err != nil {
		return nil, err
	}
	stats.TotalTransactions = total

	if c.registry != nil {
		total, err := c.count(ctx, c.registry, "getTotalProperties")
		if err != nil {
			return nil, err
		}
		stats.TotalProperties = total
	}
	return stats, nil
}

func (c *EthereumClient) count(ctx context.Context, target contract, method string) (uint64, error) {
	var out []interface{}
	if err := target.Call(&bind.CallOpts{Context: ctx}, &out, method); err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("%s: empty result", method)
	}
	return toUint64(*abi.ConvertType(out[0], new(*big.Int)).(**big.Int))
}
