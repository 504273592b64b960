// Package dashboards provisions the single operational dashboard: one page
// with traffic, service, database, WAF, and log-derived application rows.
package dashboards

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/logmetrics"
)

type DashboardProps struct {
	Settings config.Settings

	LoadBalancer awselasticloadbalancingv2.IApplicationLoadBalancer
	TargetGroup  awselasticloadbalancingv2.IApplicationTargetGroup

	ServiceTaskCount awscloudwatch.IMetric
	ServiceCPU       awscloudwatch.IMetric
	ServiceMemory    awscloudwatch.IMetric

	DatabaseCPU         awscloudwatch.IMetric
	DatabaseConnections awscloudwatch.IMetric

	LogMetrics *logmetrics.LogMetrics

	WebACLName string
}

type Dashboard struct {
	constructs.Construct

	Dashboard awscloudwatch.Dashboard
}

func graph(title string, left ...awscloudwatch.IMetric) awscloudwatch.GraphWidget {
	return awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
		Title:  jsii.String(title),
		Left:   &left,
		Width:  jsii.Number(8),
		Height: jsii.Number(6),
	})
}

// NewDashboard assembles the dashboard rows.
func NewDashboard(scope constructs.Construct, id string, props *DashboardProps) *Dashboard {
	node := constructs.NewConstruct(scope, jsii.String(id))

	sum := &awscloudwatch.MetricOptions{
		Statistic: jsii.String("Sum"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
	}
	p95 := &awscloudwatch.MetricOptions{
		Statistic: jsii.String("p95"),
		Period:    awscdk.Duration_Minutes(jsii.Number(5)),
	}

	dash := awscloudwatch.NewDashboard(node, jsii.String("Dashboard"), &awscloudwatch.DashboardProps{
		DashboardName: jsii.String(props.Settings.QualifiedName("ops")),
	})

	dash.AddWidgets(
		graph("ALB requests", props.LoadBalancer.Metrics().RequestCount(sum)),
		graph("ALB 5xx",
			props.LoadBalancer.Metrics().HttpCodeTarget(
				awselasticloadbalancingv2.HttpCodeTarget_TARGET_5XX_COUNT, sum),
			props.LoadBalancer.Metrics().HttpCodeElb(
				awselasticloadbalancingv2.HttpCodeElb_ELB_5XX_COUNT, sum)),
		graph("Target response time p95", props.TargetGroup.Metrics().TargetResponseTime(p95)),
	)

	dash.AddWidgets(
		graph("Service tasks", props.ServiceTaskCount),
		graph("Service CPU %", props.ServiceCPU),
		graph("Service memory %", props.ServiceMemory),
	)

	dash.AddWidgets(
		graph("Database CPU %", props.DatabaseCPU),
		graph("Database connections", props.DatabaseConnections),
		graph("Healthy / unhealthy targets",
			props.TargetGroup.Metrics().HealthyHostCount(nil),
			props.TargetGroup.Metrics().UnhealthyHostCount(nil)),
	)

	if props.LogMetrics != nil {
		dash.AddWidgets(
			graph("Application requests (from logs)", props.LogMetrics.RequestCount()),
			graph("Application errors (from logs)",
				props.LogMetrics.ErrorCount(),
				props.LogMetrics.ServerErrorCount()),
			graph("Application latency p95 ms (from logs)",
				props.LogMetrics.LatencyP95("/"),
				props.LogMetrics.LatencyP95("/work"),
				props.LogMetrics.LatencyP95("/db")),
		)
	}

	if props.WebACLName != "" {
		dash.AddWidgets(
			graph("WAF allowed vs counted",
				wafMetric("AllowedRequests", props.WebACLName),
				wafMetric("CountedRequests", props.WebACLName)),
			graph("WAF blocked", wafMetric("BlockedRequests", props.WebACLName)),
		)
	}

	return &Dashboard{Construct: node, Dashboard: dash}
}

func wafMetric(name, webACL string) awscloudwatch.Metric {
	return awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
		Namespace:  jsii.String("AWS/WAFV2"),
		MetricName: jsii.String(name),
		Statistic:  jsii.String("Sum"),
		Period:     awscdk.Duration_Minutes(jsii.Number(5)),
		DimensionsMap: &map[string]*string{
			"WebACL": jsii.String(webACL),
			"Region": awscdk.Aws_REGION(),
			"Rule":   jsii.String("ALL"),
		},
	})
}
