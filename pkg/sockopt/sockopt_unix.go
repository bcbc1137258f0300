// Copyright (c) 2022 The rcproxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux || freebsd || dragonfly || darwin
// +build linux freebsd dragonfly darwin

// Package sockopt applies the handful of raw socket options a TCP
// connection engine cares about (Nagle, keepalive, buffer sizing, linger)
// through net.TCPConn's syscall escape hatch.
package sockopt

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

func control(conn syscallConn, f func(fd int)) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var ctlErr error
	err = raw.Control(func(fd uintptr) {
		f(int(fd))
	})
	if err != nil {
		return err
	}
	return ctlErr
}

type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// SetNoDelay toggles TCP_NODELAY (disabling Nagle's algorithm) on the socket.
func SetNoDelay(conn syscallConn, enabled bool) error {
	var setErr error
	v := 0
	if enabled {
		v = 1
	}
	err := control(conn, func(fd int) {
		setErr = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, v)
	})
	if err != nil {
		return err
	}
	return setErr
}

// SetKeepAlivePeriod enables SO_KEEPALIVE and sets the per-platform probe
// interval as close to d as the platform allows.
func SetKeepAlivePeriod(conn syscallConn, d time.Duration) error {
	var setErr error
	err := control(conn, func(fd int) {
		if setErr = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); setErr != nil {
			return
		}
		setErr = setKeepAliveInterval(fd, d)
	})
	if err != nil {
		return err
	}
	return setErr
}

// SetRecvBuffer sets SO_RCVBUF.
func SetRecvBuffer(conn syscallConn, bytes int) error {
	var setErr error
	err := control(conn, func(fd int) {
		setErr = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, bytes)
	})
	if err != nil {
		return err
	}
	return setErr
}

// SetSendBuffer sets SO_SNDBUF.
func SetSendBuffer(conn syscallConn, bytes int) error {
	var setErr error
	err := control(conn, func(fd int) {
		setErr = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_SNDBUF, bytes)
	})
	if err != nil {
		return err
	}
	return setErr
}

// SetLinger sets SO_LINGER. A negative sec disables linger (OS default).
func SetLinger(conn syscallConn, sec int) error {
	var setErr error
	err := control(conn, func(fd int) {
		l := unix.Linger{Onoff: 0, Linger: int32(sec)}
		if sec >= 0 {
			l.Onoff = 1
		}
		setErr = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &l)
	})
	if err != nil {
		return err
	}
	return setErr
}
