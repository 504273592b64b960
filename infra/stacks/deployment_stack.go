package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscodedeploy"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdklambdagoalpha/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/samber/lo"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
)

type DeploymentStackProps struct {
	awscdk.StackProps
	Settings config.Settings

	Service      awsecs.FargateService
	LoadBalancer awselasticloadbalancingv2.IApplicationLoadBalancer
	Listener     awselasticloadbalancingv2.IApplicationListener
	TestListener awselasticloadbalancingv2.IApplicationListener
	BlueTG       awselasticloadbalancingv2.IApplicationTargetGroup
	GreenTG      awselasticloadbalancingv2.IApplicationTargetGroup

	// RollbackAlarms roll a deployment back when they fire mid-shift.
	RollbackAlarms []awscloudwatch.Alarm
}

type DeploymentStackExports struct {
	Stack           awscdk.Stack
	Application     awscodedeploy.EcsApplication
	DeploymentGroup awscodedeploy.EcsDeploymentGroup
}

// DeploymentStack provisions CodeDeploy blue/green with a 10%-for-5-minutes
// canary and lifecycle hook lambdas that smoke-test the green fleet through
// the test listener before and after the traffic shift.
func DeploymentStack(scope awscdk.App, id string, props *DeploymentStackProps) DeploymentStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)
	s := props.Settings

	app := awscodedeploy.NewEcsApplication(stack, jsii.String("Application"),
		&awscodedeploy.EcsApplicationProps{
			ApplicationName: jsii.String(s.QualifiedName("deploy")),
		})

	hook := func(name, stage string) awscdklambdagoalpha.GoFunction {
		return awscdklambdagoalpha.NewGoFunction(stack, jsii.String(name), &awscdklambdagoalpha.GoFunctionProps{
			FunctionName: jsii.String(s.QualifiedName("hook", stage)),
			Entry:        jsii.String("infra/lambdas/traffichook"),
			Timeout:      awscdk.Duration_Minutes(jsii.Number(5)),
			Bundling: &awscdklambdagoalpha.BundlingOptions{
				GoBuildFlags: &[]*string{
					jsii.String("-ldflags \"-s -w\""),
				},
			},
			Environment: &map[string]*string{
				"HOOK_STAGE": jsii.String(stage),
				// Smoke tests hit green through the test listener.
				"SMOKE_TEST_URL": jsii.String("http://" + *props.LoadBalancer.LoadBalancerDnsName() + ":8080/healthz"),
			},
		})
	}
	preHook := hook("PreTrafficHook", "pre")
	postHook := hook("PostTrafficHook", "post")

	hookPolicy := awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions:   jsii.Strings("codedeploy:PutLifecycleEventHookExecutionStatus"),
		Resources: jsii.Strings("*"),
	})
	preHook.AddToRolePolicy(hookPolicy)
	postHook.AddToRolePolicy(hookPolicy)

	rollback := lo.Map(props.RollbackAlarms,
		func(a awscloudwatch.Alarm, _ int) awscloudwatch.IAlarm { return a })

	dg := awscodedeploy.NewEcsDeploymentGroup(stack, jsii.String("DeploymentGroup"),
		&awscodedeploy.EcsDeploymentGroupProps{
			Application:         app,
			DeploymentGroupName: jsii.String(s.QualifiedName("deploy-group")),
			Service:             props.Service,
			DeploymentConfig:    awscodedeploy.EcsDeploymentConfig_CANARY_10PERCENT_5MINUTES(),
			BlueGreenDeploymentConfig: &awscodedeploy.EcsBlueGreenDeploymentConfig{
				BlueTargetGroup:     props.BlueTG,
				GreenTargetGroup:    props.GreenTG,
				Listener:            props.Listener,
				TestListener:        props.TestListener,
				TerminationWaitTime: awscdk.Duration_Minutes(jsii.Number(5)),
			},
			Alarms: &rollback,
			AutoRollback: &awscodedeploy.AutoRollbackConfig{
				FailedDeployment:  jsii.Bool(true),
				DeploymentInAlarm: jsii.Bool(len(props.RollbackAlarms) > 0),
			},
		})

	awscdk.NewCfnOutput(stack, jsii.String("CodeDeployApplication"), &awscdk.CfnOutputProps{
		Value: app.ApplicationName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("CodeDeployDeploymentGroup"), &awscdk.CfnOutputProps{
		Value: dg.DeploymentGroupName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("PreTrafficHookFunction"), &awscdk.CfnOutputProps{
		Value:       preHook.FunctionName(),
		Description: jsii.String("Reference this in the appspec Hooks section"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("PostTrafficHookFunction"), &awscdk.CfnOutputProps{
		Value:       postHook.FunctionName(),
		Description: jsii.String("Reference this in the appspec Hooks section"),
	})

	return DeploymentStackExports{Stack: stack, Application: app, DeploymentGroup: dg}
}
