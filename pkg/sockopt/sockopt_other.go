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

//go:build !linux && !freebsd && !dragonfly && !darwin
// +build !linux,!freebsd,!dragonfly,!darwin

package sockopt

import (
	"syscall"
	"time"

	corenetErrors "github.com/rcproxy/corenet/pkg/errors"
)

type syscallConn interface {
	SyscallConn() (syscall.RawConn, error)
}

// On platforms without raw socket-option support wired here, these are
// advisory no-ops that report ErrUnsupportedOp rather than panicking.

func SetNoDelay(_ syscallConn, _ bool) error                 { return corenetErrors.ErrUnsupportedOp }
func SetKeepAlivePeriod(_ syscallConn, _ time.Duration) error { return corenetErrors.ErrUnsupportedOp }
func SetRecvBuffer(_ syscallConn, _ int) error                { return corenetErrors.ErrUnsupportedOp }
func SetSendBuffer(_ syscallConn, _ int) error                { return corenetErrors.ErrUnsupportedOp }
func SetLinger(_ syscallConn, _ int) error                    { return corenetErrors.ErrUnsupportedOp }
