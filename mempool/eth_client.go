package mempool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/polymev/flasharb/apperror"
)

// Client is the node surface the monitor needs.
type Client interface {
	ChainID(ctx context.Context) (*big.Int, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error)
	SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error)
	Close()
}

// NodeClient implements Client over a websocket connection. The
// pending-transaction subscription lives in the geth client extension,
// so both clients share one RPC connection. The extra chain-read
// methods serve the rest of the pipeline (gas tracking, reserve sync,
// nonce and head tracking) over the same connection.
type NodeClient struct {
	rpc  *rpc.Client
	eth  *ethclient.Client
	geth *gethclient.Client
}

// Dial connects to a websocket endpoint.
func Dial(ctx context.Context, url string) (*NodeClient, error) {
	rpcClient, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindExternalCall, err, "failed to dial node at %s", url)
	}
	return &NodeClient{
		rpc:  rpcClient,
		eth:  ethclient.NewClient(rpcClient),
		geth: gethclient.New(rpcClient),
	}, nil
}

func (c *NodeClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *NodeClient) TransactionByHash(ctx context.Context, hash common.Hash) (*ethtypes.Transaction, bool, error) {
	return c.eth.TransactionByHash(ctx, hash)
}

func (c *NodeClient) SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error) {
	return c.geth.SubscribePendingTransactions(ctx, ch)
}

func (c *NodeClient) SubscribeNewHead(ctx context.Context, ch chan<- *ethtypes.Header) (ethereum.Subscription, error) {
	return c.eth.SubscribeNewHead(ctx, ch)
}

func (c *NodeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*ethtypes.Header, error) {
	return c.eth.HeaderByNumber(ctx, number)
}

func (c *NodeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasTipCap(ctx)
}

func (c *NodeClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CallContract(ctx, msg, blockNumber)
}

func (c *NodeClient) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.eth.CodeAt(ctx, contract, blockNumber)
}

func (c *NodeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

func (c *NodeClient) Close() {
	c.rpc.Close()
}
