package inference

import (
	"net"
	"strconv"
	"time"
)

// dialProbeTimeout 限制单次 TCP 连接探测的时长。
const dialProbeTimeout = 500 * time.Millisecond

// IsPortInUse 通过 TCP 连接探测判断 host:port 上是否有进程在监听。
// 连接成功即视为占用。
func IsPortInUse(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
