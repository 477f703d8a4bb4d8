// Command tokenmeta prints the on-chain metadata of an ERC-20 token as
// JSON. It talks straight to a JSON-RPC endpoint and does not touch the
// API server or its database.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Chain-Proof/chainproofserver/internal/chain"
)

func main() {
	var (
		rpcURL  = flag.String("rpc", "http://localhost:8545", "JSON-RPC endpoint URL")
		token   = flag.String("token", "", "token contract address (0x...)")
		timeout = flag.Duration("timeout", 15*time.Second, "total request timeout")
	)
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "tokenmeta: -token is required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := chain.Dial(ctx, *rpcURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenmeta: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	meta, err := client.TokenMetadata(ctx, *token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tokenmeta: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		fmt.Fprintf(os.Stderr, "tokenmeta: %v\n", err)
		os.Exit(1)
	}
}
