// Command client sends a single get/set/rm request to a bitcask server
// and prints the reply.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/epokhe/bitcask/internal/netproto"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  client -addr host:port get KEY\n")
	fmt.Fprintf(os.Stderr, "  client -addr host:port set KEY VALUE\n")
	fmt.Fprintf(os.Stderr, "  client -addr host:port rm KEY\n")
	os.Exit(1)
}

func main() {
	addr := flag.String("addr", "127.0.0.1:4000", "server address")
	flag.Parse()

	args := flag.Args()
	if len(args) < 2 {
		usage()
	}
	cmd, rest := args[0], args[1:]

	var opcode string
	switch cmd {
	case "get":
		opcode = "GET"
		if len(rest) != 1 {
			usage()
		}
	case "set":
		opcode = "SET"
		if len(rest) != 2 {
			usage()
		}
	case "rm":
		opcode = "RM"
		if len(rest) != 1 {
			usage()
		}
	default:
		usage()
	}

	reply, err := dispatch(*addr, opcode, rest...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(reply)

	if cmd == "rm" && reply == netproto.KeyNotFound {
		os.Exit(1)
	}
}

// dispatch sends one framed request over a fresh connection and
// returns the server's reply.
func dispatch(addr, opcode string, operands ...string) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("dial %q: %w", addr, err)
	}
	defer conn.Close() // nolint:errcheck

	if err := netproto.WriteFrame(conn, opcode, operands...); err != nil {
		return "", err
	}
	if c, ok := conn.(*net.TCPConn); ok {
		if err := c.CloseWrite(); err != nil {
			return "", fmt.Errorf("close write side: %w", err)
		}
	}

	return netproto.ReadReply(conn)
}
