package publicweb

import (
	"fmt"
	"net"
	"strings"

	"github.com/coreos/go-systemd/activation"
	"go.uber.org/zap"
)

// Listen opens a TCP listener on addr. If addr is prefixed by "sd:", the remainder must match the
// address of a socket passed in by systemd socket activation.
func Listen(logger *zap.Logger, addr string) (net.Listener, error) {
	if !strings.HasPrefix(addr, "sd:") {
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("failed to listen: %w", err)
		}
		return l, nil
	}

	listeners, err := activation.Listeners()
	if err != nil {
		return nil, fmt.Errorf("cannot retrieve systemd listeners: %w", err)
	}

	want := addr[3:]
	all := make([]string, 0, len(listeners))
	for _, l := range listeners {
		if l == nil {
			continue
		}
		logger.Debug("found systemd socket", zap.String("addr", l.Addr().String()))
		if l.Addr().String() == want {
			return l, nil
		}
		all = append(all, l.Addr().String())
	}
	return nil, fmt.Errorf("no systemd listener for %s, got: [%s]", want, strings.Join(all, ","))
}
