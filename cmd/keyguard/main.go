// Command keyguard gates shell commands issued by AI coding agents, blocking
// the ones that would read or print secrets.
package main

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	Execute()
}
