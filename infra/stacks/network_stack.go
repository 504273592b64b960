package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/cdklogger"
)

type NetworkStackProps struct {
	awscdk.StackProps
	Settings config.Settings
}

type NetworkStackExports struct {
	Stack awscdk.Stack
	Vpc   awsec2.Vpc
	// AppSecurityGroup is attached to the service tasks by the compute
	// stack. It lives here so the data stack can reference it for database
	// ingress without creating a dependency cycle between data and compute.
	AppSecurityGroup awsec2.SecurityGroup
}

// Subnet group names shared between stacks.
const (
	SubnetGroupPublic = "public"
	SubnetGroupApp    = "app"
	SubnetGroupData   = "data"
)

// NetworkStack provisions the VPC: two AZs, public subnets for the ALB,
// egress subnets for the service, isolated subnets for the database, and
// flow logs into CloudWatch.
func NetworkStack(scope awscdk.App, id string, props *NetworkStackProps) NetworkStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	s := props.Settings

	natGateways := 2.0
	if s.UseOneNAT {
		natGateways = 1
		cdklogger.LogInfo(stack, "", "single NAT gateway: cheaper, but AZ loss takes out egress for both AZs")
	}

	vpc := awsec2.NewVpc(stack, jsii.String("Vpc"), &awsec2.VpcProps{
		VpcName:     jsii.String(s.QualifiedName("vpc")),
		IpAddresses: awsec2.IpAddresses_Cidr(jsii.String("10.0.0.0/16")),
		MaxAzs:      jsii.Number(2),
		NatGateways: jsii.Number(natGateways),
		SubnetConfiguration: &[]*awsec2.SubnetConfiguration{
			{
				Name:       jsii.String(SubnetGroupPublic),
				SubnetType: awsec2.SubnetType_PUBLIC,
				CidrMask:   jsii.Number(24),
			},
			{
				Name:       jsii.String(SubnetGroupApp),
				SubnetType: awsec2.SubnetType_PRIVATE_WITH_EGRESS,
				CidrMask:   jsii.Number(24),
			},
			{
				Name:       jsii.String(SubnetGroupData),
				SubnetType: awsec2.SubnetType_PRIVATE_ISOLATED,
				CidrMask:   jsii.Number(24),
			},
		},
	})

	flowLogs := awslogs.NewLogGroup(stack, jsii.String("FlowLogs"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String("/vpc/" + s.QualifiedName("flow-logs")),
		Retention:     awslogs.RetentionDays_ONE_WEEK,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})
	vpc.AddFlowLog(jsii.String("FlowLog"), &awsec2.FlowLogOptions{
		Destination: awsec2.FlowLogDestination_ToCloudWatchLogs(flowLogs, nil),
		TrafficType: awsec2.FlowLogTrafficType_ALL,
	})

	appSG := awsec2.NewSecurityGroup(stack, jsii.String("AppSecurityGroup"), &awsec2.SecurityGroupProps{
		Vpc:               vpc,
		SecurityGroupName: jsii.String(s.QualifiedName("app")),
		Description:       jsii.String("Service tasks"),
		AllowAllOutbound:  jsii.Bool(true),
	})

	awscdk.NewCfnOutput(stack, jsii.String("VpcId"), &awscdk.CfnOutputProps{
		Value:       vpc.VpcId(),
		Description: jsii.String("VPC id"),
	})

	return NetworkStackExports{Stack: stack, Vpc: vpc, AppSecurityGroup: appSG}
}
