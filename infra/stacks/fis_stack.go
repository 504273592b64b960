package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsfis"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/cdklogger"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/database"
)

type FISStackProps struct {
	awscdk.StackProps
	Settings config.Settings

	Vpc      awsec2.IVpc
	Cluster  awsecs.Cluster
	Service  awsecs.FargateService
	Database *database.Database

	// StopConditionAlarms halt any running experiment when they fire.
	StopConditionAlarms []awscloudwatch.Alarm
}

type FISStackExports struct {
	Stack awscdk.Stack
}

// FISStack provisions the chaos experiment templates: kill half the tasks,
// stress task CPU, add network latency in the private subnets, and fail the
// database over. Every template carries the critical alarms as stop
// conditions so an experiment that actually breaks users halts itself.
func FISStack(scope awscdk.App, id string, props *FISStackProps) FISStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	s := props.Settings

	role := awsiam.NewRole(stack, jsii.String("ExperimentRole"), &awsiam.RoleProps{
		RoleName:  jsii.String(s.QualifiedName("fis")),
		AssumedBy: awsiam.NewServicePrincipal(jsii.String("fis.amazonaws.com"), nil),
		ManagedPolicies: &[]awsiam.IManagedPolicy{
			awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("CloudWatchReadOnlyAccess")),
		},
	})
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"ecs:StopTask",
			"ecs:ListTasks",
			"ecs:DescribeTasks",
			"ecs:DescribeServices",
			"ecs:DescribeClusters",
		),
		Resources: jsii.Strings("*"),
	}))
	// The CPU stress action runs SSM documents inside the task.
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"ssm:SendCommand",
			"ssm:ListCommands",
			"ssm:ListCommandInvocations",
			"ssm:GetCommandInvocation",
			"ssm:CancelCommand",
		),
		Resources: jsii.Strings("*"),
	}))
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"rds:FailoverDBCluster",
			"rds:DescribeDBClusters",
			"rds:DescribeDBInstances",
		),
		Resources: jsii.Strings("*"),
	}))
	role.AddToPolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: jsii.Strings(
			"ec2:DescribeInstances",
			"ec2:DescribeNetworkInterfaces",
			"ec2:DescribeSubnets",
		),
		Resources: jsii.Strings("*"),
	}))

	stopConditions := lo.Map(props.StopConditionAlarms,
		func(a awscloudwatch.Alarm, _ int) interface{} {
			return &awsfis.CfnExperimentTemplate_ExperimentTemplateStopConditionProperty{
				Source: jsii.String("aws:cloudwatch:alarm"),
				Value:  a.AlarmArn(),
			}
		})

	taskTarget := func(selectionMode string) map[string]interface{} {
		return map[string]interface{}{
			"Tasks": &awsfis.CfnExperimentTemplate_ExperimentTemplateTargetProperty{
				ResourceType:  jsii.String("aws:ecs:task"),
				ResourceArns:  jsii.Strings("*"),
				SelectionMode: jsii.String(selectionMode),
				ResourceTags: &map[string]*string{
					"Environment": jsii.String(s.EnvName),
				},
			},
		}
	}

	template := func(id, name, description string, targets map[string]interface{}, actions map[string]interface{}) {
		awsfis.NewCfnExperimentTemplate(stack, jsii.String(id), &awsfis.CfnExperimentTemplateProps{
			Description:    jsii.String(description),
			RoleArn:        role.RoleArn(),
			StopConditions: &stopConditions,
			Targets:        targets,
			Actions:        actions,
			Tags: &map[string]*string{
				"Name": jsii.String(s.QualifiedName(name)),
			},
		})
	}

	// Half the fleet at once is the interesting case: one task dying is
	// routine, losing an AZ worth of tasks is what the alarms are for.
	template("TaskKill", "fis-task-kill",
		"Stop half the running tasks; the service should replace them without user impact",
		taskTarget("PERCENT(50)"),
		map[string]interface{}{
			"stop-task": &awsfis.CfnExperimentTemplate_ExperimentTemplateActionProperty{
				ActionId: jsii.String("aws:ecs:stop-task"),
				Parameters: &map[string]*string{
					"clusterArn":  props.Cluster.ClusterArn(),
					"serviceName": props.Service.ServiceName(),
				},
				Targets: &map[string]*string{"Tasks": jsii.String("Tasks")},
			},
		})

	template("CPUStress", "fis-cpu-stress",
		"Stress task CPU to 80% for 10 minutes; autoscaling should absorb it",
		taskTarget("COUNT(1)"),
		map[string]interface{}{
			"cpu-stress": &awsfis.CfnExperimentTemplate_ExperimentTemplateActionProperty{
				ActionId: jsii.String("aws:ecs:task-cpu-stress"),
				Parameters: &map[string]*string{
					"duration": jsii.String("PT10M"),
					"percent":  jsii.String("80"),
				},
				Targets: &map[string]*string{"Tasks": jsii.String("Tasks")},
			},
		})

	subnetArns := lo.Map(*props.Vpc.PrivateSubnets(),
		func(subnet awsec2.ISubnet, _ int) *string {
			return stack.FormatArn(&awscdk.ArnComponents{
				Service:      jsii.String("ec2"),
				Resource:     jsii.String("subnet"),
				ResourceName: subnet.SubnetId(),
				ArnFormat:    awscdk.ArnFormat_SLASH_RESOURCE_NAME,
			})
		})

	template("NetworkLatency", "fis-network-latency",
		"Add 200ms (±50ms jitter) of latency in one private subnet for 5 minutes; watch the p95 alarm",
		map[string]interface{}{
			"Subnets": &awsfis.CfnExperimentTemplate_ExperimentTemplateTargetProperty{
				ResourceType:  jsii.String("aws:ec2:subnet"),
				ResourceArns:  &subnetArns,
				SelectionMode: jsii.String("COUNT(1)"),
			},
		},
		map[string]interface{}{
			"network-latency": &awsfis.CfnExperimentTemplate_ExperimentTemplateActionProperty{
				ActionId: jsii.String("aws:network:latency"),
				Parameters: &map[string]*string{
					"duration":           jsii.String("PT5M"),
					"delayMilliseconds":  jsii.String("200"),
					"jitterMilliseconds": jsii.String("50"),
				},
				Targets: &map[string]*string{"Subnets": jsii.String("Subnets")},
			},
		})

	if props.Database.IsCluster() {
		template("AuroraFailover", "fis-aurora-failover",
			"Fail the Aurora cluster over to the reader; /db should recover within seconds",
			map[string]interface{}{
				"Clusters": &awsfis.CfnExperimentTemplate_ExperimentTemplateTargetProperty{
					ResourceType:  jsii.String("aws:rds:cluster"),
					SelectionMode: jsii.String("ALL"),
					ResourceArns:  &[]*string{props.Database.ClusterArn()},
				},
			},
			map[string]interface{}{
				"failover": &awsfis.CfnExperimentTemplate_ExperimentTemplateActionProperty{
					ActionId: jsii.String("aws:rds:failover-db-cluster"),
					Parameters: &map[string]*string{
						"forceFailover": jsii.String("true"),
					},
					Targets: &map[string]*string{"Clusters": jsii.String("Clusters")},
				},
			})
	} else {
		cdklogger.LogInfo(stack, "", "skipping failover experiment: %s is not a cluster engine", s.DBEngine)
	}

	return FISStackExports{Stack: stack}
}
