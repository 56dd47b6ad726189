// SPDX-License-Identifier: MIT
//
// Copyright © 2018 Kent Gibson <warthog618@gmail.com>.

// rmfd is the supervisor daemon that mediates between local clients and a
// cellular modem exposing the QMI control protocol: identity queries, SIM
// unlock, registration, data-connection lifecycle and SMS retrieval, all
// reached through a framed local IPC.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/ipc"
	"github.com/aleksander0m/ravemodemfactory-sub000/internal/modem"
)

var version = "undefined"

func main() {
	device := flag.String("d", "/dev/cdc-wdm0", "path to the QMI character device")
	iface := flag.String("i", "wwan0", "network interface bound to the modem's data port")
	socket := flag.String("s", "/run/rmfd.socket", "path to the local IPC unix socket")
	tcpAddr := flag.String("t", "", "optional IPv4 TCP listen address, e.g. 127.0.0.1:9999")
	statsPath := flag.String("stats", "/var/lib/rmfd/stats.journal", "path to the connection-stats journal")
	verbose := flag.Bool("v", false, "log QMI device interactions")
	vsn := flag.Bool("version", false, "report version and exit")
	flag.Parse()
	if *vsn {
		fmt.Printf("%s %s\n", os.Args[0], version)
		os.Exit(0)
	}

	logger := log.New(os.Stderr, "rmfd: ", log.LstdFlags)

	var openLogger *log.Logger
	if *verbose {
		openLogger = logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, coord, err := modem.Open(ctx, modem.OpenOptions{
		DevicePath: *device,
		Interface:  *iface,
		Logger:     openLogger,
	})
	if err != nil {
		logger.Fatalf("opening modem: %v", err)
	}

	m := modem.New(pool, coord, *statsPath, logger)

	listenCfg := ipc.ListenConfig{SocketPath: *socket}
	if *tcpAddr != "" {
		addr, err := net.ResolveTCPAddr("tcp4", *tcpAddr)
		if err != nil {
			logger.Fatalf("resolving -t address: %v", err)
		}
		listenCfg.TCPAddr = addr
	}
	server, err := ipc.NewServer(listenCfg, m.Queue())
	if err != nil {
		logger.Fatalf("starting IPC server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Print("shutting down")
		server.Close()
		cancel()
	}()

	go server.Serve()

	if err := m.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatalf("modem event loop: %v", err)
	}
}
