package inference

import (
	"bufio"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/webglue/webglue/types"
)

// tcpListenState 是 /proc/net/tcp 中 LISTEN 状态的编码
const tcpListenState = "0A"

// findListenerPID 在 procfs 中找出监听 host:port 的进程:
// 先从 /proc/net/tcp{,6} 取出处于 LISTEN 状态且端口匹配的套接字
// inode，再扫描 /proc/<pid>/fd 找到持有该 inode 的进程。
// 监听在通配地址(0.0.0.0/[::])上的套接字匹配任意请求的 host。
func findListenerPID(host string, port int) (int, error) {
	want := resolveHostIP(host)

	var inodes []string
	for _, table := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		found, err := scanTCPTable(table, want, port)
		if err != nil {
			continue
		}
		inodes = append(inodes, found...)
	}
	if len(inodes) == 0 {
		return 0, types.NewErrorf(types.ErrProcessNotFound,
			"No server found running on %s:%d", host, port)
	}

	pid, err := pidForSocketInodes(inodes)
	if err != nil {
		return 0, types.NewErrorf(types.ErrProcessNotFound,
			"listening socket on %s:%d found but owning process is not visible", host, port).WithCause(err)
	}
	return pid, nil
}

// resolveHostIP 把 host 解析为 IP；localhost 与无法解析的名字
// 按回环处理，与连接探测使用的地址保持一致。
func resolveHostIP(host string) net.IP {
	if ip := net.ParseIP(host); ip != nil {
		return ip
	}
	if addrs, err := net.LookupIP(host); err == nil && len(addrs) > 0 {
		return addrs[0]
	}
	return net.IPv4(127, 0, 0, 1)
}

// scanTCPTable 解析一个 procfs TCP 表，返回匹配的套接字 inode 列表。
func scanTCPTable(path string, want net.IP, port int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var inodes []string
	scanner := bufio.NewScanner(f)
	scanner.Scan() // 表头
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 || fields[3] != tcpListenState {
			continue
		}
		ip, localPort, err := parseHexAddr(fields[1])
		if err != nil || localPort != port {
			continue
		}
		if !ip.IsUnspecified() && !addrMatches(ip, want) {
			continue
		}
		inodes = append(inodes, fields[9])
	}
	return inodes, scanner.Err()
}

// parseHexAddr 解析 procfs 的 "IP:PORT" 十六进制地址。IPv4 为 8 个
// 十六进制字符的小端 32 位值；IPv6 为 4 组小端 32 位字。
func parseHexAddr(s string) (net.IP, int, error) {
	ipHex, portHex, ok := strings.Cut(s, ":")
	if !ok {
		return nil, 0, fmt.Errorf("malformed address %q", s)
	}
	port64, err := strconv.ParseInt(portHex, 16, 32)
	if err != nil {
		return nil, 0, err
	}

	raw, err := hex.DecodeString(ipHex)
	if err != nil {
		return nil, 0, err
	}
	switch len(raw) {
	case 4:
		v := binary.BigEndian.Uint32(raw)
		ip := make(net.IP, 4)
		binary.LittleEndian.PutUint32(ip, v)
		return ip, int(port64), nil
	case 16:
		ip := make(net.IP, 16)
		for i := 0; i < 4; i++ {
			word := binary.BigEndian.Uint32(raw[i*4 : i*4+4])
			binary.LittleEndian.PutUint32(ip[i*4:], word)
		}
		return ip, int(port64), nil
	default:
		return nil, 0, fmt.Errorf("unexpected address length %d", len(raw))
	}
}

// addrMatches 比较两个 IP，将 IPv4 与其 IPv6 映射形式视为相同。
func addrMatches(a, b net.IP) bool {
	if a == nil || b == nil {
		return false
	}
	if a4, b4 := a.To4(), b.To4(); a4 != nil && b4 != nil {
		return a4.Equal(b4)
	}
	return a.Equal(b)
}

// pidForSocketInodes 扫描 /proc/<pid>/fd，返回首个持有任一给定
// socket inode 的进程号。
func pidForSocketInodes(inodes []string) (int, error) {
	targets := make(map[string]struct{}, len(inodes))
	for _, inode := range inodes {
		targets["socket:["+inode+"]"] = struct{}{}
	}

	procs, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}
	for _, entry := range procs {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			// 他人的进程通常不可读，跳过
			continue
		}
		for _, fd := range fds {
			link, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if _, ok := targets[link]; ok {
				return pid, nil
			}
		}
	}
	return 0, fmt.Errorf("no process holds the listening socket")
}
