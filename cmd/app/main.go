// The golden-path sample application. It serves the health/work/db endpoints
// the infrastructure stacks are built around, and implements the break/fix
// failure modes driven by the SSM failure-mode parameter.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/ssm"
	"go.uber.org/zap"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/database"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/httpapi"
	"github.com/Simodalstix/AWS-fargate-golden-path/app/metrics"
)

func init() {
	zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
}

func main() {
	logger := zap.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))

	modes := failure.NewStore(ssm.New(sess), cfg.FailureModeParam, cfg.FailureModeTTL, logger)
	db := database.NewManager(secretsmanager.New(sess), cfg.DBSecretARN, logger)

	srv := httpapi.New(cfg, logger, modes, db, metrics.New())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("server exited", zap.Error(err))
		os.Exit(1)
	}
}
