package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapplicationautoscaling"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecr"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/aws-cdk-go/awscdk/v2/awswafv2"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/database"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/kmskey"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/logbucket"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/wafacl"
)

type ComputeStackProps struct {
	awscdk.StackProps
	Settings         config.Settings
	Vpc              awsec2.IVpc
	AppSecurityGroup awsec2.ISecurityGroup
	Database         *database.Database
	FailureModeParam awsssm.IStringParameter
}

type ComputeStackExports struct {
	Stack awscdk.Stack

	Cluster    awsecs.Cluster
	Service    awsecs.FargateService
	Repository awsecr.Repository
	LogGroup   awslogs.LogGroup

	LoadBalancer awselasticloadbalancingv2.ApplicationLoadBalancer
	Listener     awselasticloadbalancingv2.ApplicationListener
	TestListener awselasticloadbalancingv2.ApplicationListener
	BlueTG       awselasticloadbalancingv2.ApplicationTargetGroup
	GreenTG      awselasticloadbalancingv2.ApplicationTargetGroup

	WebACLName string
}

const containerName = "app"

// ComputeStack provisions everything between the internet and the database:
// WAF, ALB with blue/green target groups, the ECS cluster and Fargate
// service, the ECR repository, and the encrypted log plumbing.
func ComputeStack(scope awscdk.App, id string, props *ComputeStackProps) ComputeStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	s := props.Settings

	logKey := kmskey.NewLogKey(stack, "LogKey", &kmskey.LogKeyProps{Settings: s})
	archive := logbucket.NewLogBucket(stack, "LogArchive", &logbucket.LogBucketProps{Settings: s})

	repo := awsecr.NewRepository(stack, jsii.String("Repository"), &awsecr.RepositoryProps{
		RepositoryName:  jsii.String(s.QualifiedName("app")),
		ImageScanOnPush: jsii.Bool(true),
		RemovalPolicy:   awscdk.RemovalPolicy_DESTROY,
		EmptyOnDelete:   jsii.Bool(true),
		LifecycleRules: &[]*awsecr.LifecycleRule{
			{
				Description:   jsii.String("keep the last 10 images"),
				MaxImageCount: jsii.Number(10),
			},
		},
	})

	cluster := awsecs.NewCluster(stack, jsii.String("Cluster"), &awsecs.ClusterProps{
		ClusterName:         jsii.String(s.QualifiedName("cluster")),
		Vpc:                 props.Vpc,
		ContainerInsightsV2: awsecs.ContainerInsights_ENABLED,
	})

	logGroup := awslogs.NewLogGroup(stack, jsii.String("AppLogs"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String("/ecs/" + s.QualifiedName("app")),
		EncryptionKey: logKey.Key,
		Retention:     awslogs.RetentionDays_ONE_MONTH,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})

	// ALB in the public subnets, service in the app subnets.
	// Egress from the ALB is limited to the task security group; the rules
	// to the tasks are wired when the service registers with the target
	// groups, so the only explicit rules here are the public listeners.
	albSG := awsec2.NewSecurityGroup(stack, jsii.String("AlbSecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:               props.Vpc,
		SecurityGroupName: jsii.String(s.QualifiedName("alb")),
		Description:       jsii.String("Load balancer"),
		AllowAllOutbound:  jsii.Bool(false),
	})
	albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(80)),
		jsii.String("public HTTP"), nil)
	albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(443)),
		jsii.String("public HTTPS"), nil)
	// The smoke-test hooks reach green through the test listener.
	albSG.AddIngressRule(awsec2.Peer_AnyIpv4(), awsec2.Port_Tcp(jsii.Number(8080)),
		jsii.String("test listener"), nil)

	lb := awselasticloadbalancingv2.NewApplicationLoadBalancer(stack, jsii.String("Alb"),
		&awselasticloadbalancingv2.ApplicationLoadBalancerProps{
			LoadBalancerName: jsii.String(s.QualifiedName("alb")),
			Vpc:              props.Vpc,
			InternetFacing:   jsii.Bool(true),
			SecurityGroup:    albSG,
			VpcSubnets: &awsec2.SubnetSelection{
				SubnetGroupName: jsii.String(SubnetGroupPublic),
			},
		})
	lb.LogAccessLogs(archive.Bucket, jsii.String("alb"))

	acl := wafacl.NewWebACL(stack, "Waf", &wafacl.WebACLProps{Settings: s})
	awswafv2.NewCfnWebACLAssociation(stack, jsii.String("WafAssociation"),
		&awswafv2.CfnWebACLAssociationProps{
			ResourceArn: lb.LoadBalancerArn(),
			WebAclArn:   acl.Arn(),
		})

	targetGroup := func(name string) awselasticloadbalancingv2.ApplicationTargetGroup {
		return awselasticloadbalancingv2.NewApplicationTargetGroup(stack, jsii.String(name),
			&awselasticloadbalancingv2.ApplicationTargetGroupProps{
				Vpc:        props.Vpc,
				Port:       jsii.Number(80),
				Protocol:   awselasticloadbalancingv2.ApplicationProtocol_HTTP,
				TargetType: awselasticloadbalancingv2.TargetType_IP,
				HealthCheck: &awselasticloadbalancingv2.HealthCheck{
					Path:                    jsii.String("/healthz"),
					Interval:                awscdk.Duration_Seconds(jsii.Number(30)),
					Timeout:                 awscdk.Duration_Seconds(jsii.Number(5)),
					HealthyThresholdCount:   jsii.Number(2),
					UnhealthyThresholdCount: jsii.Number(3),
				},
				// Long draining delays blue/green cutover for no benefit in
				// a service with short requests.
				DeregistrationDelay: awscdk.Duration_Seconds(jsii.Number(30)),
			})
	}
	blueTG := targetGroup("BlueTargetGroup")
	greenTG := targetGroup("GreenTargetGroup")

	// Open is off on both listeners; the security group above already
	// carries the public ingress rules.
	listener := lb.AddListener(jsii.String("Http"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port:                jsii.Number(80),
		Open:                jsii.Bool(false),
		DefaultTargetGroups: &[]awselasticloadbalancingv2.IApplicationTargetGroup{blueTG},
	})
	// CodeDeploy shifts test traffic to green here before touching prod.
	testListener := lb.AddListener(jsii.String("HttpTest"), &awselasticloadbalancingv2.BaseApplicationListenerProps{
		Port:                jsii.Number(8080),
		Protocol:            awselasticloadbalancingv2.ApplicationProtocol_HTTP,
		Open:                jsii.Bool(false),
		DefaultTargetGroups: &[]awselasticloadbalancingv2.IApplicationTargetGroup{greenTG},
	})

	taskDef := awsecs.NewFargateTaskDefinition(stack, jsii.String("TaskDef"),
		&awsecs.FargateTaskDefinitionProps{
			Cpu:            jsii.Number(s.CPU),
			MemoryLimitMiB: jsii.Number(s.MemoryMiB),
		})

	props.Database.Secret.GrantRead(taskDef.TaskRole(), nil)
	props.FailureModeParam.GrantRead(taskDef.TaskRole())
	props.FailureModeParam.GrantWrite(taskDef.TaskRole())
	taskDef.TaskRole().AddManagedPolicy(
		awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AWSXRayDaemonWriteAccess")))
	// The CPU stress and network latency experiments run through the SSM
	// agent inside the task.
	taskDef.TaskRole().AddManagedPolicy(
		awsiam.ManagedPolicy_FromAwsManagedPolicyName(jsii.String("AmazonSSMManagedInstanceCore")))

	taskDef.AddContainer(jsii.String(containerName), &awsecs.ContainerDefinitionOptions{
		Image: awsecs.ContainerImage_FromEcrRepository(repo, jsii.String("latest")),
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			LogGroup:     logGroup,
			StreamPrefix: jsii.String(containerName),
		}),
		Environment: &map[string]*string{
			"PORT":               jsii.String("80"),
			"AWS_REGION":         stack.Region(),
			"DB_SECRET_ARN":      props.Database.Secret.SecretArn(),
			"PARAM_FAILURE_MODE": props.FailureModeParam.ParameterName(),
		},
		PortMappings: &[]*awsecs.PortMapping{
			{ContainerPort: jsii.Number(80)},
		},
		HealthCheck: &awsecs.HealthCheck{
			Command:     jsii.Strings("CMD-SHELL", "curl -sf http://localhost/healthz || exit 1"),
			Interval:    awscdk.Duration_Seconds(jsii.Number(30)),
			Timeout:     awscdk.Duration_Seconds(jsii.Number(5)),
			Retries:     jsii.Number(3),
			StartPeriod: awscdk.Duration_Seconds(jsii.Number(10)),
		},
	})

	taskDef.AddContainer(jsii.String("xray-daemon"), &awsecs.ContainerDefinitionOptions{
		Image: awsecs.ContainerImage_FromRegistry(jsii.String("public.ecr.aws/xray/aws-xray-daemon:latest"), nil),
		Logging: awsecs.LogDrivers_AwsLogs(&awsecs.AwsLogDriverProps{
			LogGroup:     logGroup,
			StreamPrefix: jsii.String("xray"),
		}),
		PortMappings: &[]*awsecs.PortMapping{
			{ContainerPort: jsii.Number(2000), Protocol: awsecs.Protocol_UDP},
		},
		Essential: jsii.Bool(false),
	})

	service := awsecs.NewFargateService(stack, jsii.String("Service"), &awsecs.FargateServiceProps{
		ServiceName:    jsii.String(s.QualifiedName("svc")),
		Cluster:        cluster,
		TaskDefinition: taskDef,
		DesiredCount:   jsii.Number(s.DesiredCount),
		SecurityGroups: &[]awsec2.ISecurityGroup{props.AppSecurityGroup},
		VpcSubnets: &awsec2.SubnetSelection{
			SubnetGroupName: jsii.String(SubnetGroupApp),
		},
		DeploymentController: &awsecs.DeploymentController{
			Type: awsecs.DeploymentControllerType_CODE_DEPLOY,
		},
		EnableExecuteCommand: jsii.Bool(true),
	})
	service.AttachToApplicationTargetGroup(blueTG)

	scaling := service.AutoScaleTaskCount(&awsapplicationautoscaling.EnableScalingProps{
		MinCapacity: jsii.Number(s.DesiredCount),
		MaxCapacity: jsii.Number(s.DesiredCount * 4),
	})
	scaling.ScaleOnCpuUtilization(jsii.String("CpuScaling"), &awsecs.CpuUtilizationScalingProps{
		TargetUtilizationPercent: jsii.Number(70),
		ScaleInCooldown:          awscdk.Duration_Minutes(jsii.Number(5)),
		ScaleOutCooldown:         awscdk.Duration_Minutes(jsii.Number(1)),
	})
	scaling.ScaleOnRequestCount(jsii.String("RequestScaling"), &awsecs.RequestCountScalingProps{
		RequestsPerTarget: jsii.Number(1000),
		TargetGroup:       blueTG,
	})

	awscdk.NewCfnOutput(stack, jsii.String("AlbDnsName"), &awscdk.CfnOutputProps{
		Value:       lb.LoadBalancerDnsName(),
		Description: jsii.String("Public endpoint"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("EcrRepositoryUri"), &awscdk.CfnOutputProps{
		Value:       repo.RepositoryUri(),
		Description: jsii.String("Push application images here"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("ClusterName"), &awscdk.CfnOutputProps{
		Value: cluster.ClusterName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("ServiceName"), &awscdk.CfnOutputProps{
		Value: service.ServiceName(),
	})

	return ComputeStackExports{
		Stack:        stack,
		Cluster:      cluster,
		Service:      service,
		Repository:   repo,
		LogGroup:     logGroup,
		LoadBalancer: lb,
		Listener:     listener,
		TestListener: testListener,
		BlueTG:       blueTG,
		GreenTG:      greenTG,
		WebACLName:   s.QualifiedName("waf"),
	}
}
