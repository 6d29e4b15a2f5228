package utils

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/mpapenbr/f1-livetiming-go/log"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"ws":    "80",
	"https": "443",
	"wss":   "443",
	"nats":  "4222",
	"tls":   "4222",
}

// WaitForTCP waits until a tcp connection to addr can be established.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

// ExtractAddr returns host:port of a service url like nats://host:4222 or
// https://livetiming.formula1.com/signalr. The default port of the scheme
// is used if the url has none.
func ExtractAddr(url string) string {
	param := resolveRegex(
		"^(?P<proto>[a-z]+)://(.*@)?(?P<addr>(?P<host>[^:/]*?)(:(?P<port>\\d+))?)(/.*)?$", url)
	if len(param) == 0 || param["host"] == "" {
		return ""
	}
	if port := param["port"]; port != "" {
		return param["addr"]
	}
	port, ok := defaultPorts[param["proto"]]
	if !ok {
		return ""
	}
	return net.JoinHostPort(param["host"], port)
}

func resolveRegex(regEx, url string) (paramsMap map[string]string) {
	compRegEx := regexp.MustCompile(regEx)
	match := compRegEx.FindStringSubmatch(url)
	if match == nil {
		return nil
	}
	paramsMap = make(map[string]string)
	for i, name := range compRegEx.SubexpNames() {
		if i > 0 && i < len(match) && name != "" {
			paramsMap[name] = match[i]
		}
	}
	return paramsMap
}
