package esp

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"i4.energy/across/espgw/at"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `,`, `\,`)

// quote renders s as a double quoted AT string parameter, escaping the
// characters the firmware treats as delimiters.
func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}

// Join connects to the access point ssid. The raw Status is returned for the
// caller to interpret: StatusOK on success, StatusFail when the network
// refused the association.
func (d *Device) Join(ctx context.Context, ssid, password string) (at.Status, error) {
	cmd := at.CmdJoin + quote(ssid) + "," + quote(password)
	status, err := d.command(ctx, d.config.JoinTimeout, cmd)
	if err != nil {
		return at.StatusUnknown, err
	}
	d.logger.Info("Join finished", "ssid", ssid, "status", status)
	return status, nil
}

// Leave disconnects from the current access point.
func (d *Device) Leave(ctx context.Context) error {
	return d.exchange(ctx, d.config.ResponseTimeout, at.CmdQuit, func(ctx context.Context) error {
		_, err := waitFor(ctx, d.ch, okLiteral)
		return err
	})
}

// IP queries the module's local IPv4 address with AT+CIFSR.
func (d *Device) IP(ctx context.Context) (netip.Addr, error) {
	var ip [4]byte
	err := d.exchange(ctx, d.config.ResponseTimeout, at.CmdLocalIP, func(ctx context.Context) error {
		var err error
		ip, err = ReadIP(ctx, d.ch)
		return err
	})
	if err != nil {
		return netip.Addr{}, err
	}
	addr := netip.AddrFrom4(ip)
	d.logger.Debug("Local address", "ip", addr)
	return addr, nil
}

// Protocol is the transport of a connection opened with Open.
type Protocol string

const (
	TCP Protocol = at.ProtocolTCP
	UDP Protocol = at.ProtocolUDP
)

// ParseProtocol accepts "tcp" and "udp" in any case.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToUpper(s)); p {
	case TCP, UDP:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProtocol, s)
}
