// Package block implements the connection to an ethereum node: it selects the provider (an injected one or a fixed
// endpoint) and builds the client handle used by the contract layer to read state and send transactions.
package block

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/tarancss/adoption/lib/block/types"
)

// Source tells where the provider of a Client comes from.
type Source int

// Provider sources.
const (
	Injected Source = iota // provided by the environment
	Endpoint               // fixed JSON-RPC endpoint from the network profile
)

func (s Source) String() string {
	switch s {
	case Injected:
		return "injected"
	case Endpoint:
		return "endpoint"
	}

	return fmt.Sprintf("Source(%d)", int(s))
}

// DefaultEndpoint is used when no network profile gives one.
const DefaultEndpoint = "http://localhost:8545"

const defaultReceiptPoll = time.Second

// Injector reports a provider already set up by the host environment, if any.
type Injector interface {
	Inject(ctx context.Context) (*rpc.Client, bool)
}

// EnvInjector injects the provider whose endpoint (IPC path, ws or http URL) is held by the OS ENV variable Var.
type EnvInjector struct {
	Var string
}

// Inject dials the endpoint in the OS ENV variable. An unset variable or a failed dial means there is no injected
// provider.
func (e EnvInjector) Inject(ctx context.Context) (*rpc.Client, bool) {
	url := os.Getenv(e.Var)
	if url == "" {
		return nil, false
	}

	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		log.Printf("Injected provider %s=%s not available, err:%v", e.Var, url, err)

		return nil, false
	}

	return c, true
}

// SelectProvider returns the injected provider if inj has one, otherwise a provider for the endpoint. No connection is
// attempted for the endpoint so an unreachable node only fails on its first call.
func SelectProvider(ctx context.Context, inj Injector, endpoint string) (*rpc.Client, Source, error) {
	if inj != nil {
		if c, ok := inj.Inject(ctx); ok {
			log.Print("Using injected provider")

			return c, Injected, nil
		}
	}

	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c, err := rpc.DialHTTP(endpoint)
	if err != nil {
		return nil, Endpoint, fmt.Errorf("%s: %w: %v", endpoint, types.ErrBadEndpoint, err)
	}

	log.Printf("Using provider at %s", endpoint)

	return c, Endpoint, nil
}

// Client is the connection handle to a node. It is not modified after BuildClient and is safe for concurrent use.
type Client struct {
	rpc    *rpc.Client
	eth    *ethclient.Client
	src    Source
	signer *Signer
	poll   time.Duration
}

// BuildClient wraps the provider into a Client. If signer is not nil, its accounts are the default accounts of the
// client and their transactions are signed locally. No I/O is done.
func BuildClient(provider *rpc.Client, src Source, signer *Signer, receiptPoll time.Duration) *Client {
	if receiptPoll <= 0 {
		receiptPoll = defaultReceiptPoll
	}

	return &Client{
		rpc:    provider,
		eth:    ethclient.NewClient(provider),
		src:    src,
		signer: signer,
		poll:   receiptPoll,
	}
}

// Source returns where the provider comes from.
func (c *Client) Source() Source {
	return c.src
}

// Eth returns the ethereum client on top of the provider.
func (c *Client) Eth() *ethclient.Client {
	return c.eth
}

// Close ends the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Accounts returns the default accounts of the client, or the accounts managed by the node if there are none.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	if c.signer != nil && len(c.signer.Accounts()) > 0 {
		return c.signer.Accounts(), nil
	}

	var accounts []common.Address
	if err := c.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}

	return accounts, nil
}

// NetworkID returns the network id reported by the node (net_version) as used in contract artifacts.
func (c *Client) NetworkID(ctx context.Context) (string, error) {
	var id string
	if err := c.rpc.CallContext(ctx, &id, "net_version"); err != nil {
		return "", fmt.Errorf("net_version: %w", err)
	}

	return id, nil
}

// Call executes a read-only call to the contract at address to with the ABI encoded input data.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

// Transact sends a transaction from account from to the contract at address to. It is signed locally if the client
// signer holds the key of from, otherwise it is sent for the node to sign (eth_sendTransaction). It returns the
// transaction hash without waiting for it to be mined.
func (c *Client) Transact(ctx context.Context, from, to common.Address, data []byte) (common.Hash, error) {
	if c.signer != nil {
		if key, ok := c.signer.Key(from); ok {
			return c.sendSigned(ctx, key, from, to, data)
		}
	}

	var hash common.Hash

	tx := map[string]interface{}{
		"from": from,
		"to":   to,
		"data": hexutil.Bytes(data),
	}
	if err := c.rpc.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}

	return hash, nil
}

// WaitMined polls the node until the receipt of the transaction is available. A reverted transaction returns its
// receipt and ErrTxFailed.
func (c *Client) WaitMined(ctx context.Context, hash common.Hash) (*etypes.Receipt, error) {
	for {
		r, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if r.Status == etypes.ReceiptStatusFailed {
				return r, fmt.Errorf("%s: %w", hash.Hex(), types.ErrTxFailed)
			}

			return r, nil
		}

		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.poll):
		}
	}
}

func (c *Client) sendSigned(ctx context.Context, key *Key, from, to common.Address, data []byte) (common.Hash, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("nonce: %w", err)
	}

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas price: %w", err)
	}

	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas estimate: %w", err)
	}

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain id: %w", err)
	}

	tx := etypes.NewTransaction(nonce, to, new(big.Int), gas, price, data)

	signed, err := key.Sign(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err = c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendRawTransaction: %w", err)
	}

	return signed.Hash(), nil
}
