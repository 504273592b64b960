// Package logbucket provisions the S3 archive for ALB access logs and VPC
// flow logs, with a lifecycle that steps objects down through the cold
// storage classes before expiring them.
package logbucket

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
)

type LogBucketProps struct {
	Settings config.Settings
}

type LogBucket struct {
	constructs.Construct

	Bucket awss3.Bucket
}

// NewLogBucket creates the archive bucket. ALB access-log delivery requires
// S3-managed encryption on the bucket itself, so KMS stays on the log groups
// and the bucket uses SSE-S3.
func NewLogBucket(scope constructs.Construct, id string, props *LogBucketProps) *LogBucket {
	node := constructs.NewConstruct(scope, jsii.String(id))

	bucket := awss3.NewBucket(node, jsii.String("Bucket"), &awss3.BucketProps{
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		EnforceSSL:        jsii.Bool(true),
		Versioned:         jsii.Bool(true),
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		RemovalPolicy:     awscdk.RemovalPolicy_DESTROY,
		AutoDeleteObjects: jsii.Bool(true),
		LifecycleRules: &[]*awss3.LifecycleRule{
			{
				Id: jsii.String("archive-then-expire"),
				Transitions: &[]*awss3.Transition{
					{
						StorageClass:    awss3.StorageClass_INFREQUENT_ACCESS(),
						TransitionAfter: awscdk.Duration_Days(jsii.Number(30)),
					},
					{
						StorageClass:    awss3.StorageClass_GLACIER(),
						TransitionAfter: awscdk.Duration_Days(jsii.Number(90)),
					},
					{
						StorageClass:    awss3.StorageClass_DEEP_ARCHIVE(),
						TransitionAfter: awscdk.Duration_Days(jsii.Number(365)),
					},
				},
				Expiration: awscdk.Duration_Days(jsii.Number(2555)),
			},
		},
	})

	return &LogBucket{Construct: node, Bucket: bucket}
}
