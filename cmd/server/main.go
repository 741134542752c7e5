// Copyright 2020 The Moov Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FoleyBridge-Solutions/tr-pay-sub005"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config"
	cfgadmin "github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/config/admin"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/database"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/payments"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/secrets"
	settleadmin "github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/settlement/admin"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/pkg/util"
	"github.com/FoleyBridge-Solutions/tr-pay-sub005/x/route"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/moov-io/base/admin"
)

var (
	httpAddr  = flag.String("http.addr", "", "HTTP listen address, overrides the config file")
	adminAddr = flag.String("admin.addr", "", "Admin HTTP listen address, overrides the config file")

	flagConfigFile = flag.String("config", "", "Filepath for config file to load")
)

func main() {
	flag.Parse()

	cfg := readConfig(util.Or(os.Getenv("CONFIG_FILE"), *flagConfigFile))
	if cfg == nil {
		os.Exit(1)
	}
	logger := cfg.Logger
	logger.Log("startup", fmt.Sprintf("Starting trpay server version %s", trpay.Version))

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	db, err := database.New(ctx, logger, cfg.Database)
	if err != nil {
		panic(fmt.Sprintf("error creating database: %v", err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Log("exit", err)
		}
	}()

	keeper, err := secrets.Open(cfg.Secrets)
	if err != nil {
		panic(fmt.Sprintf("ERROR opening secrets keeper: %v", err))
	}

	// Listen for application termination.
	errs := make(chan error)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errs <- fmt.Errorf("%s", <-c)
	}()

	svc := admin.NewServer(util.Or(*adminAddr, cfg.Admin.BindAddress))
	svc.AddVersionHandler(trpay.Version)
	go func() {
		logger.Log("admin", fmt.Sprintf("listening on %s", svc.BindAddr()))
		if err := svc.Listen(); err != nil {
			errs <- fmt.Errorf("admin server: %v", err)
		}
	}()
	defer svc.Shutdown()

	alerts, err := setupAlerts(logger, cfg)
	if err != nil {
		panic(fmt.Sprintf("ERROR setting up notifications: %v", err))
	}

	pipeline, err := setupSettlement(logger, cfg, db, keeper, alerts)
	if err != nil {
		panic(fmt.Sprintf("ERROR setting up ACH settlement: %v", err))
	}
	defer pipeline.Shutdown()

	ledger, err := setupLedger(ctx, logger, cfg.PracticeCS, db)
	if err != nil {
		panic(fmt.Sprintf("ERROR connecting to PracticeCS: %v", err))
	}
	defer ledger.Close()

	paymentRepo := payments.NewRepository(db, keeper)

	returnsScheduler, err := setupReturns(logger, cfg, pipeline, paymentRepo, ledger)
	if err != nil {
		panic(fmt.Sprintf("ERROR setting up returns processing: %v", err))
	}
	if err := returnsScheduler.Start(); err != nil {
		panic(fmt.Sprintf("ERROR starting returns processing: %v", err))
	}
	defer returnsScheduler.Shutdown()

	cutoffs, err := setupCutoffs(logger, cfg.ACH.Cutoff, pipeline.cutoff)
	if err != nil {
		panic(fmt.Sprintf("ERROR scheduling ACH cutoff: %v", err))
	}
	defer cutoffs.Stop()

	orchestrator, err := setupPayments(logger, cfg, paymentRepo, keeper, pipeline, ledger, alerts)
	if err != nil {
		panic(fmt.Sprintf("ERROR setting up payments: %v", err))
	}

	// Admin routes
	cfgadmin.RegisterRoutes(svc, cfg)
	settleadmin.RegisterRoutes(logger, svc, settleadmin.Settlement{
		Repo:        pipeline.repo,
		Accumulator: pipeline.accumulator,
		Generator:   pipeline.generator,
		Uploader:    pipeline.uploader,
		Cutoff:      pipeline.cutoff,
		Returns:     returnsScheduler,
	})

	// Public routes
	handler := mux.NewRouter()
	route.PingRoute(logger, handler, db.Ping)

	router := payments.NewRouter(logger, paymentRepo, orchestrator)
	router.RegisterRoutes(handler)
	router.RegisterAdminRoutes(svc)

	// Create main HTTP server
	serve := &http.Server{
		Addr:    util.Or(*httpAddr, cfg.Http.BindAddress),
		Handler: handler,
		TLSConfig: &tls.Config{
			InsecureSkipVerify:       false,
			PreferServerCipherSuites: true,
			MinVersion:               tls.VersionTLS12,
		},
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	shutdownServer := func() {
		if err := serve.Shutdown(context.TODO()); err != nil {
			logger.Log("shutdown", err)
		}
	}

	// Start main HTTP server
	go func() {
		if certFile, keyFile := os.Getenv("HTTPS_CERT_FILE"), os.Getenv("HTTPS_KEY_FILE"); certFile != "" && keyFile != "" {
			logger.Log("startup", fmt.Sprintf("binding to %s for secure HTTP server", serve.Addr))
			if err := serve.ListenAndServeTLS(certFile, keyFile); err != nil {
				logger.Log("exit", err)
			}
		} else {
			logger.Log("startup", fmt.Sprintf("binding to %s for HTTP server", serve.Addr))
			if err := serve.ListenAndServe(); err != nil {
				logger.Log("exit", err)
			}
		}
	}()

	if err := <-errs; err != nil {
		shutdownServer()
		logger.Log("exit", err)
	}
}

func readConfig(path string) *config.Config {
	cfg, err := config.FromFile(path)
	if err != nil {
		log.NewLogfmtLogger(os.Stderr).Log("startup", fmt.Sprintf("failed to load config: %v", err))
		return nil
	}
	return cfg
}
