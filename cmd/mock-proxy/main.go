package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"stockwatch/internal/mockproxy"
	"stockwatch/pkg/utils"
)

func main() {
	addr := flag.String("addr", ":3001", "listen address")
	dataPath := flag.String("data", "", "catalog JSON (default: built-in demo catalog)")
	delay := flag.Duration("delay", 0, "artificial latency per request")
	flag.Parse()

	log := utils.Component(utils.NewLogger(utils.LogConfig{Level: "info"}), "mock-proxy")

	catalog := mockproxy.DemoCatalog()
	if *dataPath != "" {
		c, err := mockproxy.LoadCatalog(*dataPath)
		if err != nil {
			log.Fatalf("load catalog: %v", err)
		}
		catalog = c
	}

	srv := mockproxy.New(catalog)
	srv.SetDelay(*delay)

	log.WithFields(logrus.Fields{"addr": *addr, "data": *dataPath}).Info("mock proxy listening")
	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Fatal(httpSrv.ListenAndServe())
}
