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

package main

import (
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rcproxy/corenet"
	"github.com/rcproxy/corenet/config"
	"github.com/rcproxy/corenet/examples/echo"
	"github.com/rcproxy/corenet/pkg/logging"
	"github.com/rcproxy/corenet/pkg/sockopt"
)

var (
	configPath      = flag.String("p", "conf", "Config file path")
	basicConfigFile = flag.String("c", "echo.yaml", "Basic config filename")
	version         = flag.Bool("v", false, "Show version")
)

var (
	CommitSHA = "unknown"
	Tag       = "unknown"
	BuildTime = "unknown"
)

const banner = `
  ___  ___  ____  ___  _  _  ____  ____
 / __)/ _ \(  _ \/ _ \( \/ )( ___)(_  _)
( (__( (_) ))   /( (_) ))  (  )__)   )(
 \___)\___/(_)\_) \___/(_/\_)(____) (__)
`

func main() {
	flag.Parse()
	if *version {
		fmt.Printf("version: %s\ncommit: %s\ntime: %s\n", Tag, CommitSHA, BuildTime)
		os.Exit(0)
	}

	cfgFile := path.Join(*configPath, *basicConfigFile)
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(
		logging.WithFileOutput(cfg.LogPath, cfg.LogExpireDay),
		logging.WithLevel(cfg.LogLevel),
	); err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	watcher, err := config.WatchConfig(cfgFile, func(next *config.Config) {
		logging.Infof("config: reloaded from %s", cfgFile)
		if lvl, ok := logging.LevelFromString(next.LogLevel); ok {
			logging.Infof("config: log level %s takes effect on restart", lvl)
		}
	})
	if err != nil {
		logging.Warnf("config: hot reload disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	fmt.Print(banner)
	logging.Infof("echo starting on port %d, pid %d, version %s", cfg.Port, syscall.Getpid(), Tag)

	handler := echo.NewHandler(60 * time.Second)
	reg := prometheus.NewRegistry()
	host := corenet.NewHost(handler,
		corenet.WithSocketBufferSize(cfg.Host.SocketBufferSize),
		corenet.WithMessageBufferSize(cfg.Host.MessageBufferSize),
		corenet.WithQueueCapacity(cfg.Host.QueueCapacity),
		corenet.WithPoolCapacity(cfg.Host.PoolCapacity),
		corenet.WithMetrics(reg),
	)

	stop := make(chan struct{})
	handler.StartReaper(10*time.Second, stop, func(id int64) {
		if c, ok := host.GetConnectionByID(id); ok {
			logging.Infof("echo: reaping idle connection %d", id)
			c.BeginDisconnect(nil)
		}
	})

	if cfg.WebPort > 0 {
		admin := echo.NewAdminServer(host, handler)
		srv := &http.Server{Handler: admin, Addr: fmt.Sprintf(":%d", cfg.WebPort)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("admin server: %v", err)
			}
		}()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		logging.Errorf("listen on port %d: %v", cfg.Port, err)
		os.Exit(1)
	}
	logging.Infof("echo listening on %s", ln.Addr())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logging.Infof("echo shutting down")
		close(stop)
		ln.Close()
		host.Stop()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			logging.Infof("accept loop exiting: %v", err)
			return
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := sockopt.SetNoDelay(tcp, true); err != nil {
				logging.Warnf("set TCP_NODELAY: %v", err)
			}
			if err := sockopt.SetKeepAlivePeriod(tcp, 30*time.Second); err != nil {
				logging.Warnf("set keepalive: %v", err)
			}
		}
		c, err := host.NewConnection(conn)
		if err != nil {
			logging.Errorf("new connection: %v", err)
			conn.Close()
			continue
		}
		host.RegisterConnection(c)
	}
}
