// Package logmetrics turns the application's structured access log into
// CloudWatch metrics. The filter patterns match the JSON fields the service
// emits on every request (status, latencyMs, errorType, requestId), so the
// log format and these filters have to move together.
package logmetrics

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// Namespace groups the application-level metrics extracted from logs.
const Namespace = "GoldenPath/Application"

type LogMetricsProps struct {
	LogGroup awslogs.ILogGroup
}

// LogMetrics owns the metric filters on the application log group.
type LogMetrics struct {
	constructs.Construct

	errorCount   awslogs.MetricFilter
	serverErrors awslogs.MetricFilter
	latency      awslogs.MetricFilter
	requestCount awslogs.MetricFilter
}

// NewLogMetrics attaches the four filters to the application log group.
func NewLogMetrics(scope constructs.Construct, id string, props *LogMetricsProps) *LogMetrics {
	node := constructs.NewConstruct(scope, jsii.String(id))
	lm := &LogMetrics{Construct: node}

	lm.errorCount = awslogs.NewMetricFilter(node, jsii.String("ErrorCount"), &awslogs.MetricFilterProps{
		LogGroup:        props.LogGroup,
		MetricNamespace: jsii.String(Namespace),
		MetricName:      jsii.String("ErrorCount"),
		FilterPattern:   awslogs.FilterPattern_Exists(jsii.String("$.errorType")),
		MetricValue:     jsii.String("1"),
		DefaultValue:    jsii.Number(0),
	})

	lm.serverErrors = awslogs.NewMetricFilter(node, jsii.String("ServerErrorCount"), &awslogs.MetricFilterProps{
		LogGroup:        props.LogGroup,
		MetricNamespace: jsii.String(Namespace),
		MetricName:      jsii.String("ServerErrorCount"),
		FilterPattern: awslogs.FilterPattern_NumberValue(
			jsii.String("$.status"), jsii.String(">="), jsii.Number(500)),
		MetricValue:  jsii.String("1"),
		DefaultValue: jsii.Number(0),
	})

	lm.latency = awslogs.NewMetricFilter(node, jsii.String("RequestLatency"), &awslogs.MetricFilterProps{
		LogGroup:        props.LogGroup,
		MetricNamespace: jsii.String(Namespace),
		MetricName:      jsii.String("RequestLatencyMs"),
		FilterPattern:   awslogs.FilterPattern_Exists(jsii.String("$.latencyMs")),
		MetricValue:     jsii.String("$.latencyMs"),
		Dimensions: &map[string]*string{
			"path": jsii.String("$.path"),
		},
	})

	lm.requestCount = awslogs.NewMetricFilter(node, jsii.String("RequestCount"), &awslogs.MetricFilterProps{
		LogGroup:        props.LogGroup,
		MetricNamespace: jsii.String(Namespace),
		MetricName:      jsii.String("RequestCount"),
		FilterPattern:   awslogs.FilterPattern_Exists(jsii.String("$.requestId")),
		MetricValue:     jsii.String("1"),
		DefaultValue:    jsii.Number(0),
	})

	return lm
}

// ErrorCount is the count of requests logged with an errorType.
func (lm *LogMetrics) ErrorCount() awscloudwatch.Metric {
	return lm.errorCount.Metric(&awscloudwatch.MetricOptions{
		Statistic: jsii.String("Sum"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
	})
}

// ServerErrorCount counts requests with status >= 500.
func (lm *LogMetrics) ServerErrorCount() awscloudwatch.Metric {
	return lm.serverErrors.Metric(&awscloudwatch.MetricOptions{
		Statistic: jsii.String("Sum"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
	})
}

// LatencyP95 is the 95th percentile of request latency in milliseconds for
// one path. The filter publishes per-path, so there is no aggregate series.
func (lm *LogMetrics) LatencyP95(path string) awscloudwatch.Metric {
	return lm.latency.Metric(&awscloudwatch.MetricOptions{
		Statistic: jsii.String("p95"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
		DimensionsMap: &map[string]*string{
			"path": jsii.String(path),
		},
	})
}

// RequestCount counts all logged requests.
func (lm *LogMetrics) RequestCount() awscloudwatch.Metric {
	return lm.requestCount.Metric(&awscloudwatch.MetricOptions{
		Statistic: jsii.String("Sum"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
	})
}
