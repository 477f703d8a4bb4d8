// Package chain reads token metadata from an EVM JSON-RPC endpoint. It is
// self-contained and not used by the HTTP service.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrNoContract   = errors.New("no contract code at token address")
	ErrEmptyResult  = errors.New("empty result from token contract")
	ErrDecodeResult = errors.New("could not decode token contract result")
)

// TokenMetadata is what an ERC-20 contract reports about itself.
type TokenMetadata struct {
	Address     string   `json:"address"`
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"total_supply"`
}

type Client struct {
	eth *ethclient.Client
}

func Dial(ctx context.Context, rawURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("could not instantiate ethereum client: %w", err)
	}
	return &Client{eth: eth}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// TokenMetadata sequences the four metadata calls against the token
// contract. Name and symbol fall back to bytes32 decoding for pre-standard
// tokens that never adopted the string ABI.
func (c *Client) TokenMetadata(ctx context.Context, address string) (*TokenMetadata, error) {
	token := common.HexToAddress(address)

	code, err := c.eth.CodeAt(ctx, token, nil)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContract, address)
	}

	name, err := c.callString(ctx, token, "name()")
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}

	symbol, err := c.callString(ctx, token, "symbol()")
	if err != nil {
		return nil, fmt.Errorf("symbol: %w", err)
	}

	decimalsWord, err := c.callUint(ctx, token, "decimals()")
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}
	decimals, err := decimalsUint8(decimalsWord)
	if err != nil {
		return nil, fmt.Errorf("decimals: %w", err)
	}

	supply, err := c.callUint(ctx, token, "totalSupply()")
	if err != nil {
		return nil, fmt.Errorf("totalSupply: %w", err)
	}

	return &TokenMetadata{
		Address:     token.Hex(),
		Name:        name,
		Symbol:      symbol,
		Decimals:    decimals,
		TotalSupply: supply,
	}, nil
}

func (c *Client) call(ctx context.Context, token common.Address, signature string) ([]byte, error) {
	selector := crypto.Keccak256([]byte(signature))[:4]
	return c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: selector,
	}, nil)
}

// callString decodes an ABI string return value, falling back to a bytes32
// read for tokens that predate the string variants of name/symbol.
func (c *Client) callString(ctx context.Context, token common.Address, signature string) (string, error) {
	result, err := c.call(ctx, token, signature)
	if err != nil {
		return "", err
	}
	if len(result) == 0 {
		return "", ErrEmptyResult
	}

	if s, ok := decodeABIString(result); ok {
		return s, nil
	}

	// bytes32 fallback: fixed-width, NUL padded
	if len(result) == 32 {
		return strings.TrimRight(string(result), "\x00"), nil
	}

	return "", ErrDecodeResult
}

func (c *Client) callUint(ctx context.Context, token common.Address, signature string) (*big.Int, error) {
	result, err := c.call(ctx, token, signature)
	if err != nil {
		return nil, err
	}
	if len(result) < 32 {
		return nil, ErrEmptyResult
	}
	return new(big.Int).SetBytes(result[:32]), nil
}

// decodeABIString decodes the standard dynamic-string encoding: a 32-byte
// offset, a 32-byte length, then the padded payload. The offset and length
// words come straight off the wire, so every bound is checked by
// subtraction; adding to an attacker-chosen word could overflow int64.
func decodeABIString(data []byte) (string, bool) {
	if len(data) < 64 {
		return "", false
	}

	offset := new(big.Int).SetBytes(data[:32])
	if !offset.IsInt64() {
		return "", false
	}
	start := offset.Int64()
	if start > int64(len(data))-32 {
		return "", false
	}

	length := new(big.Int).SetBytes(data[start : start+32])
	if !length.IsInt64() {
		return "", false
	}
	n := length.Int64()
	if n > int64(len(data))-32-start {
		return "", false
	}

	return string(data[start+32 : start+32+n]), true
}

// decimalsUint8 narrows the decimals() word to uint8. Anything outside
// 0..255 means the contract is not a sane ERC-20 and is reported, not
// clamped.
func decimalsUint8(v *big.Int) (uint8, error) {
	if v == nil || !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("%w: decimals out of range", ErrDecodeResult)
	}
	return uint8(v.Uint64()), nil
}
