package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnsupportedScheme is returned by Connect for destination schemes this
// module does not implement an adapter for.
var ErrUnsupportedScheme = errors.New("transport: unsupported connection scheme")

// Connect resolves a destination connection string to a Transport. Only the
// inproc:// scheme is implemented; it returns (creating if necessary) the
// named transport registered in dir. Other recognized schemes (tcp,
// rabbitmq, amqp) report ErrUnsupportedScheme, signalling that the matching
// network adapter is an external collaborator this module does not provide.
func Connect(connString string, dir *Directory) (*Transport, error) {
	scheme, rest, ok := strings.Cut(connString, "://")
	if !ok {
		return nil, fmt.Errorf("transport: malformed connection string %q", connString)
	}
	switch scheme {
	case "inproc":
		if rest == "" {
			return nil, errors.New("transport: inproc connection string requires an id")
		}
		if existing, ok := dir.Lookup(rest); ok {
			return existing, nil
		}
		return New(rest, dir), nil
	case "tcp", "rabbitmq", "amqp":
		return nil, ErrUnsupportedScheme
	default:
		return nil, fmt.Errorf("transport: unknown scheme %q", scheme)
	}
}

func subscriptionID(transportID string, seq uint64) string {
	return transportID + "#" + strconv.FormatUint(seq, 10)
}
