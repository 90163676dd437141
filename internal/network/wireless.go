// Package network reads link quality of the wireless interface.
package network

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const procWireless = "/proc/net/wireless"

// SignalReader reports the signal level of one interface in dBm.
type SignalReader struct {
	iface string
	path  string
}

func NewSignalReader(iface string) *SignalReader {
	return &SignalReader{iface: iface, path: procWireless}
}

func (r *SignalReader) SignalStrength() (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()
	return parseSignal(f, r.iface)
}

// parseSignal finds the interface line of /proc/net/wireless:
//
//	Inter-| sta-|   Quality        |   Discarded packets
//	 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
//	 wlan0: 0000   54.  -56.  -256        0      0      0      0     12        0
func parseSignal(r io.Reader, iface string) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		name, rest, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return 0, fmt.Errorf("malformed wireless line for %s", iface)
		}
		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return 0, fmt.Errorf("parse signal level %q: %w", fields[2], err)
		}
		return int(level), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("interface %s not found", iface)
}
