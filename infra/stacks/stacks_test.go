package stacks_test

import (
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/stacks"
)

type synthesized struct {
	network       stacks.NetworkStackExports
	data          stacks.DataStackExports
	compute       stacks.ComputeStackExports
	observability stacks.ObservabilityStackExports
	deployment    stacks.DeploymentStackExports
	fis           stacks.FISStackExports
}

// synthApp wires the full stack set the way the entrypoint does. Bundling is
// disabled so the hook lambdas do not get compiled during assertions.
func synthApp(t *testing.T, extraContext map[string]interface{}) synthesized {
	t.Helper()

	ctx := map[string]interface{}{
		"aws:cdk:bundling-stacks": []interface{}{},
	}
	for k, v := range extraContext {
		ctx[k] = v
	}
	app := awscdk.NewApp(&awscdk.AppProps{Context: &ctx})

	settings, err := config.Resolve(app, nil)
	if err != nil {
		t.Fatalf("resolving settings: %v", err)
	}

	env := &awscdk.Environment{
		Account: jsii.String("123456789012"),
		Region:  jsii.String("us-east-1"),
	}
	props := awscdk.StackProps{Env: env}

	out := synthesized{}
	out.network = stacks.NetworkStack(app, "network", &stacks.NetworkStackProps{
		StackProps: props,
		Settings:   settings,
	})
	out.data = stacks.DataStack(app, "data", &stacks.DataStackProps{
		StackProps:       props,
		Settings:         settings,
		Vpc:              out.network.Vpc,
		AppSecurityGroup: out.network.AppSecurityGroup,
	})
	out.compute = stacks.ComputeStack(app, "compute", &stacks.ComputeStackProps{
		StackProps:       props,
		Settings:         settings,
		Vpc:              out.network.Vpc,
		AppSecurityGroup: out.network.AppSecurityGroup,
		Database:         out.data.Database,
		FailureModeParam: out.data.FailureModeParam,
	})
	out.observability = stacks.ObservabilityStack(app, "observability", &stacks.ObservabilityStackProps{
		StackProps:   props,
		Settings:     settings,
		Cluster:      out.compute.Cluster,
		Service:      out.compute.Service,
		LoadBalancer: out.compute.LoadBalancer,
		TargetGroup:  out.compute.BlueTG,
		LogGroup:     out.compute.LogGroup,
		Database:     out.data.Database,
		WebACLName:   out.compute.WebACLName,
	})
	out.deployment = stacks.DeploymentStack(app, "deployment", &stacks.DeploymentStackProps{
		StackProps:     props,
		Settings:       settings,
		Service:        out.compute.Service,
		LoadBalancer:   out.compute.LoadBalancer,
		Listener:       out.compute.Listener,
		TestListener:   out.compute.TestListener,
		BlueTG:         out.compute.BlueTG,
		GreenTG:        out.compute.GreenTG,
		RollbackAlarms: out.observability.Alarms.CriticalAlarms(),
	})
	out.fis = stacks.FISStack(app, "fis", &stacks.FISStackProps{
		StackProps:          props,
		Settings:            settings,
		Vpc:                 out.network.Vpc,
		Cluster:             out.compute.Cluster,
		Service:             out.compute.Service,
		Database:            out.data.Database,
		StopConditionAlarms: out.observability.Alarms.CriticalAlarms(),
	})
	return out
}

func TestNetworkStack(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.network.Stack, nil)

	template.HasResourceProperties(jsii.String("AWS::EC2::VPC"), map[string]interface{}{
		"CidrBlock": "10.0.0.0/16",
	})
	// useOneNat defaults on.
	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(1))
	// Three subnet groups across two AZs.
	template.ResourceCountIs(jsii.String("AWS::EC2::Subnet"), jsii.Number(6))
	template.ResourceCountIs(jsii.String("AWS::EC2::FlowLog"), jsii.Number(1))
}

func TestNetworkStackTwoNATs(t *testing.T) {
	out := synthApp(t, map[string]interface{}{"useOneNat": false})
	template := assertions.Template_FromStack(out.network.Stack, nil)

	template.ResourceCountIs(jsii.String("AWS::EC2::NatGateway"), jsii.Number(2))
}

func TestDataStackAurora(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.data.Stack, nil)

	template.HasResourceProperties(jsii.String("AWS::RDS::DBCluster"), map[string]interface{}{
		"Engine": "aurora-postgresql",
		"ServerlessV2ScalingConfiguration": map[string]interface{}{
			"MinCapacity": 0.5,
			"MaxCapacity": 1,
		},
	})
	// Writer and reader.
	template.ResourceCountIs(jsii.String("AWS::RDS::DBInstance"), jsii.Number(2))
	template.HasResourceProperties(jsii.String("AWS::SSM::Parameter"), map[string]interface{}{
		"Name":  stacks.FailureModeParameterName,
		"Value": "none",
	})
	template.HasResourceProperties(jsii.String("AWS::SecretsManager::Secret"), map[string]interface{}{
		"GenerateSecretString": assertions.Match_ObjectLike(&map[string]interface{}{
			"SecretStringTemplate": assertions.Match_StringLikeRegexp(jsii.String("dbadmin")),
		}),
	})
}

func TestDataStackMySQL(t *testing.T) {
	out := synthApp(t, map[string]interface{}{"dbEngine": "mysql"})
	template := assertions.Template_FromStack(out.data.Stack, nil)

	template.ResourceCountIs(jsii.String("AWS::RDS::DBCluster"), jsii.Number(0))
	template.HasResourceProperties(jsii.String("AWS::RDS::DBInstance"), map[string]interface{}{
		"Engine": "mysql",
	})
}

func TestComputeStack(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.compute.Stack, nil)

	template.HasResourceProperties(jsii.String("AWS::ECS::Service"), map[string]interface{}{
		"DesiredCount": 2,
		"DeploymentController": map[string]interface{}{
			"Type": "CODE_DEPLOY",
		},
	})
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::LoadBalancer"), map[string]interface{}{
		"Scheme": "internet-facing",
	})
	template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::TargetGroup"), jsii.Number(2))
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::TargetGroup"), map[string]interface{}{
		"HealthCheckPath":            "/healthz",
		"HealthCheckIntervalSeconds": 30,
		"HealthCheckTimeoutSeconds":  5,
	})
	// Prod listener on 80, test listener on 8080.
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::Listener"), map[string]interface{}{
		"Port": 80,
	})
	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::Listener"), map[string]interface{}{
		"Port": 8080,
	})
	template.HasResourceProperties(jsii.String("AWS::WAFv2::WebACL"), map[string]interface{}{
		"Scope": "REGIONAL",
		"Rules": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name": "AWSManagedRulesCommonRuleSet",
			}),
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name": "AWSManagedRulesKnownBadInputsRuleSet",
			}),
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name": "AWSManagedRulesAmazonIpReputationList",
			}),
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name": "RateLimitPerIP",
			}),
		}),
	})
	template.ResourceCountIs(jsii.String("AWS::WAFv2::WebACLAssociation"), jsii.Number(1))
	// The ALB keeps a tight security group: public 80/443 (plus the test
	// listener) in, egress only via the rules the service wiring adds.
	template.HasResourceProperties(jsii.String("AWS::EC2::SecurityGroup"), map[string]interface{}{
		"SecurityGroupIngress": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"CidrIp":   "0.0.0.0/0",
				"FromPort": 80,
			}),
			assertions.Match_ObjectLike(&map[string]interface{}{
				"CidrIp":   "0.0.0.0/0",
				"FromPort": 443,
			}),
		}),
	})
	template.HasResourceProperties(jsii.String("AWS::ECR::Repository"), map[string]interface{}{
		"ImageScanningConfiguration": map[string]interface{}{
			"ScanOnPush": true,
		},
		"LifecyclePolicy": assertions.Match_ObjectLike(&map[string]interface{}{
			"LifecyclePolicyText": assertions.Match_StringLikeRegexp(jsii.String("\"countNumber\":10")),
		}),
	})
	template.HasResourceProperties(jsii.String("AWS::KMS::Key"), map[string]interface{}{
		"EnableKeyRotation": true,
	})
	// CPU target tracking and request-count target tracking.
	template.ResourceCountIs(jsii.String("AWS::ApplicationAutoScaling::ScalingPolicy"), jsii.Number(2))
	template.HasResourceProperties(jsii.String("AWS::ApplicationAutoScaling::ScalableTarget"), map[string]interface{}{
		"MinCapacity": 2,
		"MaxCapacity": 8,
	})
}

func TestComputeStackTaskEnvironment(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.compute.Stack, nil)

	template.HasResourceProperties(jsii.String("AWS::ECS::TaskDefinition"), map[string]interface{}{
		"ContainerDefinitions": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Name": "app",
				"Environment": assertions.Match_ArrayWith(&[]interface{}{
					map[string]interface{}{
						"Name":  "PARAM_FAILURE_MODE",
						"Value": assertions.Match_AnyValue(),
					},
					map[string]interface{}{
						"Name":  "DB_SECRET_ARN",
						"Value": assertions.Match_AnyValue(),
					},
				}),
			}),
		}),
	})
}

func TestObservabilityStack(t *testing.T) {
	out := synthApp(t, map[string]interface{}{"alarmEmail": "ops@example.com"})
	template := assertions.Template_FromStack(out.observability.Stack, nil)

	template.ResourceCountIs(jsii.String("AWS::Logs::MetricFilter"), jsii.Number(4))
	// Latency is published per request path.
	template.HasResourceProperties(jsii.String("AWS::Logs::MetricFilter"), map[string]interface{}{
		"MetricTransformations": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"MetricName":  "RequestLatencyMs",
				"MetricValue": "$.latencyMs",
				"Dimensions": assertions.Match_ArrayWith(&[]interface{}{
					map[string]interface{}{
						"Key":   "path",
						"Value": "$.path",
					},
				}),
			}),
		}),
	})
	template.ResourceCountIs(jsii.String("AWS::SNS::Topic"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::SNS::Subscription"), map[string]interface{}{
		"Protocol": "email",
		"Endpoint": "ops@example.com",
	})
	template.ResourceCountIs(jsii.String("AWS::CloudWatch::Dashboard"), jsii.Number(1))
	// ALB (3) + ECS (3) + RDS (2, no free-storage alarm for Aurora) + WAF (2).
	template.ResourceCountIs(jsii.String("AWS::CloudWatch::Alarm"), jsii.Number(10))
	template.HasResourceProperties(jsii.String("AWS::CloudWatch::Alarm"), map[string]interface{}{
		"TreatMissingData": "breaching",
	})
}

func TestObservabilityStackInstanceEngineGetsStorageAlarm(t *testing.T) {
	out := synthApp(t, map[string]interface{}{"dbEngine": "postgres"})
	template := assertions.Template_FromStack(out.observability.Stack, nil)

	template.HasResourceProperties(jsii.String("AWS::CloudWatch::Alarm"), map[string]interface{}{
		"MetricName": "FreeStorageSpace",
	})
	template.ResourceCountIs(jsii.String("AWS::CloudWatch::Alarm"), jsii.Number(11))
}

func TestDeploymentStack(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.deployment.Stack, nil)

	template.ResourceCountIs(jsii.String("AWS::CodeDeploy::Application"), jsii.Number(1))
	template.HasResourceProperties(jsii.String("AWS::CodeDeploy::DeploymentGroup"), map[string]interface{}{
		"DeploymentConfigName": "CodeDeployDefault.ECSCanary10Percent5Minutes",
		"AutoRollbackConfiguration": assertions.Match_ObjectLike(&map[string]interface{}{
			"Enabled": true,
		}),
	})
	// Pre and post traffic hooks.
	template.ResourceCountIs(jsii.String("AWS::Lambda::Function"), jsii.Number(2))
	template.HasResourceProperties(jsii.String("AWS::Lambda::Function"), map[string]interface{}{
		"Environment": map[string]interface{}{
			"Variables": assertions.Match_ObjectLike(&map[string]interface{}{
				"HOOK_STAGE": "pre",
			}),
		},
	})
}

func TestFISStackAurora(t *testing.T) {
	out := synthApp(t, nil)
	template := assertions.Template_FromStack(out.fis.Stack, nil)

	// Task kill, CPU stress, network latency, failover.
	template.ResourceCountIs(jsii.String("AWS::FIS::ExperimentTemplate"), jsii.Number(4))
	template.HasResourceProperties(jsii.String("AWS::FIS::ExperimentTemplate"), map[string]interface{}{
		"StopConditions": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Source": "aws:cloudwatch:alarm",
			}),
		}),
	})

	// Task kill takes out half the fleet, scoped to the service.
	template.HasResourceProperties(jsii.String("AWS::FIS::ExperimentTemplate"), map[string]interface{}{
		"Targets": map[string]interface{}{
			"Tasks": assertions.Match_ObjectLike(&map[string]interface{}{
				"ResourceType":  "aws:ecs:task",
				"SelectionMode": "PERCENT(50)",
			}),
		},
		"Actions": map[string]interface{}{
			"stop-task": assertions.Match_ObjectLike(&map[string]interface{}{
				"ActionId": "aws:ecs:stop-task",
				"Parameters": assertions.Match_ObjectLike(&map[string]interface{}{
					"clusterArn":  assertions.Match_AnyValue(),
					"serviceName": assertions.Match_AnyValue(),
				}),
			}),
		},
	})

	// CPU stress runs for ten minutes on one task.
	template.HasResourceProperties(jsii.String("AWS::FIS::ExperimentTemplate"), map[string]interface{}{
		"Targets": map[string]interface{}{
			"Tasks": assertions.Match_ObjectLike(&map[string]interface{}{
				"SelectionMode": "COUNT(1)",
			}),
		},
		"Actions": map[string]interface{}{
			"cpu-stress": assertions.Match_ObjectLike(&map[string]interface{}{
				"ActionId": "aws:ecs:task-cpu-stress",
				"Parameters": assertions.Match_ObjectLike(&map[string]interface{}{
					"duration": "PT10M",
					"percent":  "80",
				}),
			}),
		},
	})

	// Latency injection targets a private subnet with jitter.
	template.HasResourceProperties(jsii.String("AWS::FIS::ExperimentTemplate"), map[string]interface{}{
		"Targets": map[string]interface{}{
			"Subnets": assertions.Match_ObjectLike(&map[string]interface{}{
				"ResourceType":  "aws:ec2:subnet",
				"SelectionMode": "COUNT(1)",
			}),
		},
		"Actions": map[string]interface{}{
			"network-latency": assertions.Match_ObjectLike(&map[string]interface{}{
				"ActionId": "aws:network:latency",
				"Parameters": assertions.Match_ObjectLike(&map[string]interface{}{
					"duration":           "PT5M",
					"delayMilliseconds":  "200",
					"jitterMilliseconds": "50",
				}),
			}),
		},
	})
}

func TestFISStackInstanceEngineSkipsFailover(t *testing.T) {
	out := synthApp(t, map[string]interface{}{"dbEngine": "postgres"})
	template := assertions.Template_FromStack(out.fis.Stack, nil)

	template.ResourceCountIs(jsii.String("AWS::FIS::ExperimentTemplate"), jsii.Number(3))
}
