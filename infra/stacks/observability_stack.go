package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config/alerting"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/alarms"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/dashboards"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/database"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/logmetrics"
)

type ObservabilityStackProps struct {
	awscdk.StackProps
	Settings config.Settings
	Routing  *alerting.Routing

	Cluster      awsecs.Cluster
	Service      awsecs.FargateService
	LoadBalancer awselasticloadbalancingv2.IApplicationLoadBalancer
	TargetGroup  awselasticloadbalancingv2.IApplicationTargetGroup
	LogGroup     awslogs.ILogGroup
	Database     *database.Database
	WebACLName   string
}

type ObservabilityStackExports struct {
	Stack  awscdk.Stack
	Alarms *alarms.Alarms
}

// ObservabilityStack wires the log-derived metrics, the dashboard, and the
// alarm set onto the resources the other stacks created.
func ObservabilityStack(scope awscdk.App, id string, props *ObservabilityStackProps) ObservabilityStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)

	// Context and profile win; the environment (.env) is the fallback for
	// the alert targets so operators do not have to thread them through -c.
	envVars := config.GetEnvironmentVariables[config.SynthEnvironmentVariables](stack)
	if props.Settings.AlarmEmail == "" {
		props.Settings.AlarmEmail = envVars.AlarmEmail
	}
	if props.Settings.WebhookURL == "" {
		props.Settings.WebhookURL = envVars.WebhookURL
	}

	lm := logmetrics.NewLogMetrics(stack, "LogMetrics", &logmetrics.LogMetricsProps{
		LogGroup: props.LogGroup,
	})

	taskCount := ecsMetric(props, "RunningTaskCount", "Average")
	cpu := props.Service.MetricCpuUtilization(&awscloudwatch.MetricOptions{
		Period: awscdk.Duration_Minutes(jsii.Number(5)),
	})
	memory := props.Service.MetricMemoryUtilization(&awscloudwatch.MetricOptions{
		Period: awscdk.Duration_Minutes(jsii.Number(5)),
	})

	al := alarms.NewAlarms(stack, "Alarms", &alarms.AlarmsProps{
		Settings:            props.Settings,
		Routing:             props.Routing,
		LoadBalancer:        props.LoadBalancer,
		TargetGroup:         props.TargetGroup,
		ServiceTaskCount:    taskCount,
		ServiceCPU:          cpu,
		ServiceMemory:       memory,
		DatabaseCPU:         props.Database.MetricCPU(),
		DatabaseConnections: props.Database.MetricConnections(),
		DatabaseFreeStorage: props.Database.MetricFreeStorage(),
		WebACLName:          props.WebACLName,
	})

	dashboards.NewDashboard(stack, "Dashboard", &dashboards.DashboardProps{
		Settings:            props.Settings,
		LoadBalancer:        props.LoadBalancer,
		TargetGroup:         props.TargetGroup,
		ServiceTaskCount:    taskCount,
		ServiceCPU:          cpu,
		ServiceMemory:       memory,
		DatabaseCPU:         props.Database.MetricCPU(),
		DatabaseConnections: props.Database.MetricConnections(),
		LogMetrics:          lm,
		WebACLName:          props.WebACLName,
	})

	awscdk.NewCfnOutput(stack, jsii.String("AlertTopicArn"), &awscdk.CfnOutputProps{
		Value:       al.Topic.TopicArn(),
		Description: jsii.String("SNS topic receiving every alarm transition"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("DashboardName"), &awscdk.CfnOutputProps{
		Value: jsii.String(props.Settings.QualifiedName("ops")),
	})
	// Ready-made Logs Insights queries for incident debugging.
	awscdk.NewCfnOutput(stack, jsii.String("ErrorsInsightsQuery"), &awscdk.CfnOutputProps{
		Value: jsii.String(
			"fields @timestamp, requestId, path, status, errorType | filter ispresent(errorType) | sort @timestamp desc | limit 50"),
		Description: jsii.String("Logs Insights: recent errors"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("SlowRequestsInsightsQuery"), &awscdk.CfnOutputProps{
		Value: jsii.String(
			"fields @timestamp, requestId, path, latencyMs | filter latencyMs > 1000 | sort latencyMs desc | limit 50"),
		Description: jsii.String("Logs Insights: slowest requests"),
	})

	return ObservabilityStackExports{Stack: stack, Alarms: al}
}

// RunningTaskCount comes from Container Insights, not the default AWS/ECS
// namespace.
func ecsMetric(props *ObservabilityStackProps, name, statistic string) awscloudwatch.Metric {
	return awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
		Namespace:  jsii.String("ECS/ContainerInsights"),
		MetricName: jsii.String(name),
		Statistic:  jsii.String(statistic),
		Period:     awscdk.Duration_Minutes(jsii.Number(1)),
		DimensionsMap: &map[string]*string{
			"ClusterName": props.Cluster.ClusterName(),
			"ServiceName": props.Service.ServiceName(),
		},
	})
}
