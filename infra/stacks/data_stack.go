package stacks

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsssm"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/constructs/database"
)

// FailureModeParameterName is where the service reads its failure mode.
// The application's PARAM_FAILURE_MODE env var must match.
const FailureModeParameterName = "/golden/failure_mode"

type DataStackProps struct {
	awscdk.StackProps
	Settings         config.Settings
	Vpc              awsec2.IVpc
	AppSecurityGroup awsec2.ISecurityGroup
}

type DataStackExports struct {
	Stack            awscdk.Stack
	Database         *database.Database
	FailureModeParam awsssm.StringParameter
}

// DataStack provisions the database, its generated credentials secret, and
// the SSM parameter that drives failure injection.
func DataStack(scope awscdk.App, id string, props *DataStackProps) DataStackExports {
	stack := awscdk.NewStack(scope, jsii.String(id), &props.StackProps)

	db := database.NewDatabase(stack, "Database", &database.DatabaseProps{
		Settings:         props.Settings,
		Vpc:              props.Vpc,
		AppSecurityGroup: props.AppSecurityGroup,
	})

	param := awsssm.NewStringParameter(stack, jsii.String("FailureModeParam"), &awsssm.StringParameterProps{
		ParameterName: jsii.String(FailureModeParameterName),
		StringValue:   jsii.String("none"),
		Description:   jsii.String("Failure injection mode for the sample service"),
	})

	awscdk.NewCfnOutput(stack, jsii.String("DbSecretArn"), &awscdk.CfnOutputProps{
		Value:       db.Secret.SecretArn(),
		Description: jsii.String("Database credentials secret"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("DbEndpoint"), &awscdk.CfnOutputProps{
		Value:       db.EndpointHostname(),
		Description: jsii.String("Database writer endpoint"),
	})
	awscdk.NewCfnOutput(stack, jsii.String("FailureModeParameter"), &awscdk.CfnOutputProps{
		Value:       param.ParameterName(),
		Description: jsii.String("SSM parameter controlling failure injection"),
	})

	return DataStackExports{Stack: stack, Database: db, FailureModeParam: param}
}
