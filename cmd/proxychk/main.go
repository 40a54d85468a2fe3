// Package main provides the entry point for the proxychk CLI.
//
// proxychk checks whether proxy endpoints accept connections and which of
// HTTP, HTTPS, SOCKS4 and SOCKS5 they serve.
//
// Usage:
//
//	proxychk check 203.0.113.5:3128
//	proxychk check --list proxies.txt --format json
//
// See --help for all available options.
package main

func main() {
	Execute()
}
