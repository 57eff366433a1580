package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"wacgbridge/cmd/internal/signer"
)

func defaultEndpoint() string {
	if url := strings.TrimSpace(os.Getenv("WACG_RPC_URL")); url != "" {
		return url
	}
	return "http://localhost:8545"
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wacg-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	endpoint := fs.String("rpc", defaultEndpoint(), "JSON-RPC endpoint")
	keyPath := fs.String("key", "", "Signing key: hex private key file or encrypted keystore")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 2
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		printUsage(stderr)
		return 2
	}
	params, err := cmd.payload(rest[1:])
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", rest[0], err)
		return 2
	}

	c := &client{endpoint: *endpoint, http: &http.Client{Timeout: 15 * time.Second}, now: time.Now}
	if cmd.signed && *keyPath != "" {
		key, err := signer.LoadKey(*keyPath, signer.NewPassphrase(signer.PassphraseEnv).Get)
		if err != nil {
			fmt.Fprintf(stderr, "load key: %v\n", err)
			return 1
		}
		c.key = key
	}

	resp, err := c.call(cmd, params)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if resp.Error != nil {
		out, _ := json.MarshalIndent(resp.Error, "", "  ")
		fmt.Fprintln(stderr, string(out))
		return 1
	}
	out, err := json.MarshalIndent(resp.Result, "", "  ")
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	fmt.Fprintln(stdout, string(out))
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: wacg-cli [-rpc URL] [-key FILE] <command> [field=value ...]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range commandNames() {
		cmd := commands[name]
		marker := ""
		if cmd.signed {
			marker = " (signed)"
		}
		fmt.Fprintf(w, "  %-15s %s%s\n", name, cmd.usage, marker)
	}
}
