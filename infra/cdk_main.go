package main

import (
	"log"
	"os"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/joho/godotenv"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config/alerting"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/stacks"
)

func main() {
	// .env is optional; real environments set variables for real.
	_ = godotenv.Load()

	app := awscdk.NewApp(nil)

	profile, err := config.LoadProfile(os.Getenv("GOLDEN_PROFILE"))
	if err != nil {
		log.Fatal(err)
	}
	settings, err := config.Resolve(app, profile)
	if err != nil {
		log.Fatal(err)
	}
	routing, err := alerting.Load(settings.AlertRoutingPath)
	if err != nil {
		log.Fatal(err)
	}

	network := stacks.NetworkStack(app, settings.QualifiedName("network"), &stacks.NetworkStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("VPC, subnets, and flow logs for the golden path platform"),
		},
		Settings: settings,
	})

	data := stacks.DataStack(app, settings.QualifiedName("data"), &stacks.DataStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("Database, credentials secret, and failure-mode parameter"),
		},
		Settings:         settings,
		Vpc:              network.Vpc,
		AppSecurityGroup: network.AppSecurityGroup,
	})
	data.Stack.AddDependency(network.Stack, nil)

	compute := stacks.ComputeStack(app, settings.QualifiedName("compute"), &stacks.ComputeStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("WAF, ALB, ECS cluster, Fargate service, and ECR repository"),
		},
		Settings:         settings,
		Vpc:              network.Vpc,
		AppSecurityGroup: network.AppSecurityGroup,
		Database:         data.Database,
		FailureModeParam: data.FailureModeParam,
	})
	compute.Stack.AddDependency(data.Stack, nil)

	observability := stacks.ObservabilityStack(app, settings.QualifiedName("observability"), &stacks.ObservabilityStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("Log metrics, dashboard, and alarms"),
		},
		Settings:     settings,
		Routing:      routing,
		Cluster:      compute.Cluster,
		Service:      compute.Service,
		LoadBalancer: compute.LoadBalancer,
		TargetGroup:  compute.BlueTG,
		LogGroup:     compute.LogGroup,
		Database:     data.Database,
		WebACLName:   compute.WebACLName,
	})
	observability.Stack.AddDependency(compute.Stack, nil)

	deployment := stacks.DeploymentStack(app, settings.QualifiedName("deployment"), &stacks.DeploymentStackProps{
		StackProps: awscdk.StackProps{
			Env:         env(),
			Description: jsii.String("CodeDeploy blue/green with canary traffic shifting"),
		},
		Settings:       settings,
		Service:        compute.Service,
		LoadBalancer:   compute.LoadBalancer,
		Listener:       compute.Listener,
		TestListener:   compute.TestListener,
		BlueTG:         compute.BlueTG,
		GreenTG:        compute.GreenTG,
		RollbackAlarms: observability.Alarms.CriticalAlarms(),
	})
	deployment.Stack.AddDependency(observability.Stack, nil)

	if settings.EnableFIS {
		fis := stacks.FISStack(app, settings.QualifiedName("fis"), &stacks.FISStackProps{
			StackProps: awscdk.StackProps{
				Env:         env(),
				Description: jsii.String("Chaos experiment templates with alarm stop conditions"),
			},
			Settings:            settings,
			Vpc:                 network.Vpc,
			Cluster:             compute.Cluster,
			Service:             compute.Service,
			Database:            data.Database,
			StopConditionAlarms: observability.Alarms.CriticalAlarms(),
		})
		fis.Stack.AddDependency(observability.Stack, nil)
	}

	app.Synth(nil)
}

// env determines the AWS environment (account+region) in which our stacks
// are to be deployed, preferring the explicit CDK_DEPLOY_* pair.
func env() *awscdk.Environment {
	account := os.Getenv("CDK_DEPLOY_ACCOUNT")
	region := os.Getenv("CDK_DEPLOY_REGION")

	if len(account) == 0 || len(region) == 0 {
		account = os.Getenv("CDK_DEFAULT_ACCOUNT")
		region = os.Getenv("CDK_DEFAULT_REGION")
	}

	return &awscdk.Environment{
		Account: jsii.String(account),
		Region:  jsii.String(region),
	}
}
