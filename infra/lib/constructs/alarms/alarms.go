// Package alarms provisions the SNS alert topic and the CloudWatch alarms
// covering the load balancer, the service, the database, and the WAF.
package alarms

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatchactions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssnssubscriptions"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config/alerting"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/cdklogger"
)

type AlarmsProps struct {
	Settings config.Settings
	// Routing carries extra subscriptions beyond Settings.AlarmEmail and
	// Settings.WebhookURL. May be nil.
	Routing *alerting.Routing

	LoadBalancer awselasticloadbalancingv2.IApplicationLoadBalancer
	TargetGroup  awselasticloadbalancingv2.IApplicationTargetGroup

	// Service metrics, built by the caller so this package does not care
	// whether they come from a live service or an imported one.
	ServiceTaskCount awscloudwatch.IMetric
	ServiceCPU       awscloudwatch.IMetric
	ServiceMemory    awscloudwatch.IMetric

	DatabaseCPU         awscloudwatch.IMetric
	DatabaseConnections awscloudwatch.IMetric
	// DatabaseFreeStorage is nil for Aurora Serverless, which has no fixed
	// allocated storage to run out of.
	DatabaseFreeStorage awscloudwatch.IMetric

	// WebACLName enables the WAF alarms when non-empty.
	WebACLName string
}

// Alarms owns the alert topic and every alarm wired to it.
type Alarms struct {
	constructs.Construct

	Topic awssns.Topic

	ALBServerErrorRate awscloudwatch.Alarm
	ALBLatencyP95      awscloudwatch.Alarm
	UnhealthyTargets   awscloudwatch.Alarm

	ServiceTaskCountLow awscloudwatch.Alarm
	ServiceCPUHigh      awscloudwatch.Alarm
	ServiceMemoryHigh   awscloudwatch.Alarm

	DatabaseCPUHigh         awscloudwatch.Alarm
	DatabaseConnectionsHigh awscloudwatch.Alarm
	DatabaseStorageLow      awscloudwatch.Alarm

	WAFBlockedHigh   awscloudwatch.Alarm
	WAFRateLimitHits awscloudwatch.Alarm
}

// NewAlarms creates the topic, subscribes every configured target, and
// builds the alarm set.
func NewAlarms(scope constructs.Construct, id string, props *AlarmsProps) *Alarms {
	node := constructs.NewConstruct(scope, jsii.String(id))
	a := &Alarms{Construct: node}

	a.Topic = awssns.NewTopic(node, jsii.String("Topic"), &awssns.TopicProps{
		TopicName:   jsii.String(props.Settings.QualifiedName("alerts")),
		DisplayName: jsii.String("Golden path platform alerts"),
	})
	a.subscribe(props)

	action := awscloudwatchactions.NewSnsAction(a.Topic)
	alarm := func(al awscloudwatch.Alarm) awscloudwatch.Alarm {
		al.AddAlarmAction(action)
		al.AddOkAction(action)
		return al
	}

	// Server error rate as a percentage of all requests. Raw 5xx counts
	// alarm during traffic spikes even when the error ratio is healthy.
	errorRate := awscloudwatch.NewMathExpression(&awscloudwatch.MathExpressionProps{
		Expression: jsii.String("errors / FILL(requests, 1) * 100"),
		Label:      jsii.String("5xx rate (%)"),
		UsingMetrics: &map[string]awscloudwatch.IMetric{
			"errors": props.LoadBalancer.Metrics().HttpCodeTarget(
				awselasticloadbalancingv2.HttpCodeTarget_TARGET_5XX_COUNT,
				&awscloudwatch.MetricOptions{
					Statistic: jsii.String("Sum"),
					Period:    awscdk.Duration_Minutes(jsii.Number(5)),
				}),
			"requests": props.LoadBalancer.Metrics().RequestCount(
				&awscloudwatch.MetricOptions{
					Statistic: jsii.String("Sum"),
					Period:    awscdk.Duration_Minutes(jsii.Number(5)),
				}),
		},
	})
	a.ALBServerErrorRate = alarm(errorRate.CreateAlarm(node, jsii.String("ALBServerErrorRate"),
		&awscloudwatch.CreateAlarmOptions{
			AlarmName:          jsii.String(props.Settings.QualifiedName("alb-5xx-rate")),
			AlarmDescription:   jsii.String("Target 5xx responses exceed 1% of requests"),
			Threshold:          jsii.Number(1),
			EvaluationPeriods:  jsii.Number(2),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	a.ALBLatencyP95 = alarm(props.TargetGroup.Metrics().TargetResponseTime(
		&awscloudwatch.MetricOptions{
			Statistic: jsii.String("p95"),
			Period:    awscdk.Duration_Minutes(jsii.Number(5)),
		}).CreateAlarm(node, jsii.String("ALBLatencyP95"),
		&awscloudwatch.CreateAlarmOptions{
			AlarmName:          jsii.String(props.Settings.QualifiedName("alb-latency-p95")),
			AlarmDescription:   jsii.String("p95 target response time above 2 seconds"),
			Threshold:          jsii.Number(2),
			EvaluationPeriods:  jsii.Number(3),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	a.UnhealthyTargets = alarm(props.TargetGroup.Metrics().UnhealthyHostCount(
		&awscloudwatch.MetricOptions{
			Statistic: jsii.String("Maximum"),
			Period:    awscdk.Duration_Minutes(jsii.Number(1)),
		}).CreateAlarm(node, jsii.String("UnhealthyTargets"),
		&awscloudwatch.CreateAlarmOptions{
			AlarmName:          jsii.String(props.Settings.QualifiedName("alb-unhealthy-targets")),
			AlarmDescription:   jsii.String("One or more targets failing health checks"),
			Threshold:          jsii.Number(0),
			EvaluationPeriods:  jsii.Number(2),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	// Missing data is BREACHING here: no task-count datapoints usually
	// means the service itself is gone, which is exactly the page-worthy
	// case during a task-kill experiment gone wrong.
	a.ServiceTaskCountLow = alarm(awscloudwatch.NewAlarm(node, jsii.String("ServiceTaskCountLow"),
		&awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(props.Settings.QualifiedName("ecs-task-count-low")),
			AlarmDescription:   jsii.String("Running task count below the desired count"),
			Metric:             props.ServiceTaskCount,
			Threshold:          jsii.Number(props.Settings.DesiredCount),
			EvaluationPeriods:  jsii.Number(2),
			ComparisonOperator: awscloudwatch.ComparisonOperator_LESS_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_BREACHING,
		}))

	a.ServiceCPUHigh = alarm(awscloudwatch.NewAlarm(node, jsii.String("ServiceCPUHigh"),
		&awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(props.Settings.QualifiedName("ecs-cpu-high")),
			AlarmDescription:   jsii.String("Service CPU utilization above 80%"),
			Metric:             props.ServiceCPU,
			Threshold:          jsii.Number(80),
			EvaluationPeriods:  jsii.Number(3),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	a.ServiceMemoryHigh = alarm(awscloudwatch.NewAlarm(node, jsii.String("ServiceMemoryHigh"),
		&awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(props.Settings.QualifiedName("ecs-memory-high")),
			AlarmDescription:   jsii.String("Service memory utilization above 80%"),
			Metric:             props.ServiceMemory,
			Threshold:          jsii.Number(80),
			EvaluationPeriods:  jsii.Number(3),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	a.DatabaseCPUHigh = alarm(awscloudwatch.NewAlarm(node, jsii.String("DatabaseCPUHigh"),
		&awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(props.Settings.QualifiedName("db-cpu-high")),
			AlarmDescription:   jsii.String("Database CPU utilization above 80%"),
			Metric:             props.DatabaseCPU,
			Threshold:          jsii.Number(80),
			EvaluationPeriods:  jsii.Number(3),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	a.DatabaseConnectionsHigh = alarm(awscloudwatch.NewAlarm(node, jsii.String("DatabaseConnectionsHigh"),
		&awscloudwatch.AlarmProps{
			AlarmName:          jsii.String(props.Settings.QualifiedName("db-connections-high")),
			AlarmDescription:   jsii.String("Database connection count unusually high, possible connection leak"),
			Metric:             props.DatabaseConnections,
			Threshold:          jsii.Number(80),
			EvaluationPeriods:  jsii.Number(2),
			ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
			TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
		}))

	if props.DatabaseFreeStorage != nil {
		a.DatabaseStorageLow = alarm(awscloudwatch.NewAlarm(node, jsii.String("DatabaseStorageLow"),
			&awscloudwatch.AlarmProps{
				AlarmName:          jsii.String(props.Settings.QualifiedName("db-storage-low")),
				AlarmDescription:   jsii.String("Database free storage below 2 GiB"),
				Metric:             props.DatabaseFreeStorage,
				Threshold:          jsii.Number(2 * 1024 * 1024 * 1024),
				EvaluationPeriods:  jsii.Number(1),
				ComparisonOperator: awscloudwatch.ComparisonOperator_LESS_THAN_THRESHOLD,
				TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
			}))
	} else {
		cdklogger.LogInfo(node, "", "skipping free-storage alarm: engine has no fixed storage allocation")
	}

	if props.WebACLName != "" {
		a.WAFBlockedHigh = alarm(awscloudwatch.NewAlarm(node, jsii.String("WAFBlockedHigh"),
			&awscloudwatch.AlarmProps{
				AlarmName:          jsii.String(props.Settings.QualifiedName("waf-blocked-high")),
				AlarmDescription:   jsii.String("WAF blocking over 100 requests per 5 minutes"),
				Metric:             wafMetric("BlockedRequests", props.WebACLName, "ALL"),
				Threshold:          jsii.Number(100),
				EvaluationPeriods:  jsii.Number(1),
				ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
				TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
			}))

		a.WAFRateLimitHits = alarm(awscloudwatch.NewAlarm(node, jsii.String("WAFRateLimitHits"),
			&awscloudwatch.AlarmProps{
				AlarmName:          jsii.String(props.Settings.QualifiedName("waf-rate-limit-hits")),
				AlarmDescription:   jsii.String("Rate-limit rule matching more than 10 requests per 5 minutes"),
				Metric:             wafMetric("CountedRequests", props.WebACLName, "RateLimitPerIP"),
				Threshold:          jsii.Number(10),
				EvaluationPeriods:  jsii.Number(1),
				ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
				TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
			}))
	}

	return a
}

func (a *Alarms) subscribe(props *AlarmsProps) {
	emails := []string{}
	webhooks := []string{}
	if props.Settings.AlarmEmail != "" {
		emails = append(emails, props.Settings.AlarmEmail)
	}
	if props.Settings.WebhookURL != "" {
		webhooks = append(webhooks, props.Settings.WebhookURL)
	}
	if props.Routing != nil {
		emails = append(emails, props.Routing.Emails...)
		webhooks = append(webhooks, props.Routing.Webhooks...)
	}

	for _, email := range lo.Uniq(emails) {
		a.Topic.AddSubscription(awssnssubscriptions.NewEmailSubscription(jsii.String(email), nil))
	}
	for _, url := range lo.Uniq(webhooks) {
		a.Topic.AddSubscription(awssnssubscriptions.NewUrlSubscription(jsii.String(url), nil))
	}

	if len(emails) == 0 && len(webhooks) == 0 {
		cdklogger.LogWarning(a.Construct, "", "alert topic has no subscriptions; set alarmEmail or provide an alert routing file")
	}
}

func wafMetric(name, webACL, rule string) awscloudwatch.Metric {
	return awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
		Namespace:  jsii.String("AWS/WAFV2"),
		MetricName: jsii.String(name),
		Statistic:  jsii.String("Sum"),
		Period:     awscdk.Duration_Minutes(jsii.Number(5)),
		DimensionsMap: &map[string]*string{
			"WebACL": jsii.String(webACL),
			"Region": awscdk.Aws_REGION(),
			"Rule":   jsii.String(rule),
		},
	})
}

// CriticalAlarms is the subset used as chaos experiment stop conditions:
// the ones that mean users are actually hurting.
func (a *Alarms) CriticalAlarms() []awscloudwatch.Alarm {
	return []awscloudwatch.Alarm{
		a.ALBServerErrorRate,
		a.ALBLatencyP95,
		a.UnhealthyTargets,
		a.ServiceTaskCountLow,
	}
}
