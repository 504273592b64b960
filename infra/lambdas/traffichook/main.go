// CodeDeploy lifecycle hook for the blue/green deployment group. The same
// binary serves BeforeAllowTraffic and AfterAllowTraffic; HOOK_STAGE only
// changes the log fields. It smoke-tests the green fleet through the test
// listener and reports the verdict back to CodeDeploy.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/codedeploy"
	"go.uber.org/zap"
)

type hookEvent struct {
	DeploymentID                  string `json:"DeploymentId"`
	LifecycleEventHookExecutionID string `json:"LifecycleEventHookExecutionId"`
}

type handler struct {
	cd       *codedeploy.CodeDeploy
	logger   *zap.Logger
	stage    string
	smokeURL string
	client   *http.Client
}

func (h *handler) handle(ctx context.Context, event hookEvent) error {
	logger := h.logger.With(
		zap.String("stage", h.stage),
		zap.String("deploymentId", event.DeploymentID),
	)

	status := codedeploy.LifecycleEventStatusSucceeded
	if err := h.smokeTest(ctx); err != nil {
		logger.Error("smoke test failed", zap.Error(err))
		status = codedeploy.LifecycleEventStatusFailed
	} else {
		logger.Info("smoke test passed")
	}

	_, err := h.cd.PutLifecycleEventHookExecutionStatusWithContext(ctx,
		&codedeploy.PutLifecycleEventHookExecutionStatusInput{
			DeploymentId:                  aws.String(event.DeploymentID),
			LifecycleEventHookExecutionId: aws.String(event.LifecycleEventHookExecutionID),
			Status:                        aws.String(status),
		})
	if err != nil {
		return fmt.Errorf("reporting hook status: %w", err)
	}
	return nil
}

// smokeTest retries for up to a minute: green tasks may still be settling
// when the BeforeAllowTraffic hook fires.
func (h *handler) smokeTest(ctx context.Context) error {
	if h.smokeURL == "" {
		h.logger.Warn("SMOKE_TEST_URL not set, passing by default")
		return nil
	}

	deadline := time.Now().Add(time.Minute)
	var lastErr error
	for time.Now().Before(deadline) {
		lastErr = h.probe(ctx)
		if lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return lastErr
}

func (h *handler) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.smokeURL, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("smoke test returned %d", resp.StatusCode)
	}
	return nil
}

func main() {
	logger := zap.Must(zap.NewProduction())
	defer logger.Sync()

	sess := session.Must(session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}))

	h := &handler{
		cd:       codedeploy.New(sess),
		logger:   logger,
		stage:    os.Getenv("HOOK_STAGE"),
		smokeURL: os.Getenv("SMOKE_TEST_URL"),
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	lambda.Start(h.handle)
}
