/*
 * Copyright 2024-2026 FairCredit Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisutil "github.com/kthomas/go-redisutil"
	provide "github.com/provideplatform/provide-go/common"

	"github.com/faircredit/registry/activity"
	"github.com/faircredit/registry/common"
	"github.com/faircredit/registry/course"
	"github.com/faircredit/registry/credential"
	"github.com/faircredit/registry/hub"
	"github.com/faircredit/registry/provider"
	"github.com/faircredit/registry/resource"
	"github.com/faircredit/registry/store"
)

const runloopSleepInterval = 250 * time.Millisecond
const runloopTickInterval = 5000 * time.Millisecond

var (
	cancelF     context.CancelFunc
	closing     uint32
	shutdownCtx context.Context
	sigs        chan os.Signal

	srv *http.Server
)

func main() {
	common.Log.Debug("starting registry API")
	installSignalHandlers()

	redisutil.RequireRedis()

	runAPI()

	timer := time.NewTicker(runloopTickInterval)
	defer timer.Stop()

	for !shuttingDown() {
		select {
		case <-timer.C:
			// tick
		case sig := <-sigs:
			common.Log.Debugf("received signal: %s", sig)
			srv.Shutdown(shutdownCtx)
			shutdown()
		case <-shutdownCtx.Done():
			close(sigs)
		default:
			time.Sleep(runloopSleepInterval)
		}
	}

	common.Log.Debug("exiting registry API")
	cancelF()
}

func installSignalHandlers() {
	common.Log.Debug("installing signal handlers for registry API")
	sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	shutdownCtx, cancelF = context.WithCancel(context.Background())
}

func shutdown() {
	if atomic.AddUint32(&closing, 1) == 1 {
		common.Log.Debug("shutting down registry API")
		cancelF()
	}
}

func shuttingDown() bool {
	return atomic.LoadUint32(&closing) > 0
}

func runAPI() {
	listenAddr := os.Getenv("API_LISTEN_ADDR")
	if listenAddr == "" {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		listenAddr = fmt.Sprintf("0.0.0.0:%s", port)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(common.WalletAuthMiddleware())

	hub.InstallAPI(r)
	provider.InstallAPI(r)
	course.InstallAPI(r)
	resource.InstallAPI(r)
	activity.InstallAPI(r)
	credential.InstallAPI(r)
	store.InstallAPI(r)

	r.GET("/status", statusHandler)

	srv = &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		common.Log.Infof("registry API listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.Log.Panicf("failed to serve registry API; %s", err.Error())
		}
	}()
}

func statusHandler(c *gin.Context) {
	provide.Render(nil, 204, c)
}
