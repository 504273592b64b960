// Package kmskey provisions the customer-managed key that encrypts the
// platform's logs and log-archive objects.
package kmskey

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
)

type LogKeyProps struct {
	Settings config.Settings
}

// LogKey wraps the KMS key shared by CloudWatch Logs and the S3 log archive.
type LogKey struct {
	constructs.Construct

	Key awskms.Key
}

// NewLogKey creates the key with rotation enabled and grants the regional
// CloudWatch Logs and S3 server-access-logging services use of it.
func NewLogKey(scope constructs.Construct, id string, props *LogKeyProps) *LogKey {
	node := constructs.NewConstruct(scope, jsii.String(id))

	stack := awscdk.Stack_Of(node)

	key := awskms.NewKey(node, jsii.String("Key"), &awskms.KeyProps{
		Alias:             jsii.String("alias/" + props.Settings.QualifiedName("logs")),
		Description:       jsii.String("Encrypts application logs and the access-log archive"),
		EnableKeyRotation: jsii.Bool(true),
		RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
	})

	// CloudWatch Logs encrypts log groups with this key; the grant must be
	// scoped to log groups in this account to satisfy the service's check.
	key.AddToResourcePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Principals: &[]awsiam.IPrincipal{
			awsiam.NewServicePrincipal(
				jsii.String("logs."+*stack.Region()+".amazonaws.com"), nil),
		},
		Actions: jsii.Strings(
			"kms:Encrypt*",
			"kms:Decrypt*",
			"kms:ReEncrypt*",
			"kms:GenerateDataKey*",
			"kms:Describe*",
		),
		Resources: jsii.Strings("*"),
		Conditions: &map[string]interface{}{
			"ArnLike": map[string]interface{}{
				"kms:EncryptionContext:aws:logs:arn": "arn:aws:logs:" +
					*stack.Region() + ":" + *stack.Account() + ":*",
			},
		},
	}), jsii.Bool(true))

	// S3 server access logging delivery.
	key.AddToResourcePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Principals: &[]awsiam.IPrincipal{
			awsiam.NewServicePrincipal(jsii.String("delivery.logs.amazonaws.com"), nil),
		},
		Actions:   jsii.Strings("kms:GenerateDataKey*", "kms:Decrypt"),
		Resources: jsii.Strings("*"),
	}), jsii.Bool(true))

	return &LogKey{Construct: node, Key: key}
}
