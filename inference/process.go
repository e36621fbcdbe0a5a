package inference

import (
	"bytes"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// Process 是一个已启动的服务器进程。stderr 被持续捕获，
// 进程若在启动确认前退出，其输出会作为失败原因上报。
type Process struct {
	PID int

	cmd  *exec.Cmd
	done chan struct{}

	mu      sync.Mutex
	stderr  bytes.Buffer
	waitErr error
}

// Exited 报告进程是否已经退出。
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// WaitErr 返回进程退出时 Wait 的错误；进程未退出时为 nil。
func (p *Process) WaitErr() error {
	select {
	case <-p.done:
		return p.waitErr
	default:
		return nil
	}
}

// StderrOutput 返回目前捕获到的标准错误输出。
func (p *Process) StderrOutput() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.TrimSpace(p.stderr.String())
}

// Write 实现 io.Writer，供 exec.Cmd 把 stderr 写进来。
func (p *Process) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stderr.Write(b)
}

// LaunchFunc 启动服务器进程。测试通过替换它避免真实 spawn。
type LaunchFunc func(exe string, args []string) (*Process, error)

// launchDetached 在独立会话中启动进程，使其不随调用方终端退出。
// 这是脱离式启动：调用方不负责回收，停止走信号路径。
func launchDetached(exe string, args []string) (*Process, error) {
	p := &Process{done: make(chan struct{})}

	cmd := exec.Command(exe, args...)
	cmd.Stderr = p
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	p.cmd = cmd
	p.PID = cmd.Process.Pid
	go func() {
		// close(done) 先于任何 WaitErr 读取，waitErr 无需加锁
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}
