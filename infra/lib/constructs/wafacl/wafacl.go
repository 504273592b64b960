// Package wafacl provisions the regional WAF web ACL in front of the ALB.
// All rules run in count mode: this is a lab, and blocking legitimate chaos
// traffic would muddy the experiments. Flip overrides to none to enforce.
package wafacl

import (
	"github.com/aws/aws-cdk-go/awscdk/v2/awswafv2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
)

type WebACLProps struct {
	Settings config.Settings
	// RateLimit is requests per 5 minutes per source IP.
	RateLimit float64
}

type WebACL struct {
	constructs.Construct

	ACL awswafv2.CfnWebACL
}

// Name of the CloudWatch metric dimension prefix used by every rule.
const metricPrefix = "GoldenPath"

func managedRule(name string, priority float64) *awswafv2.CfnWebACL_RuleProperty {
	return &awswafv2.CfnWebACL_RuleProperty{
		Name:     jsii.String(name),
		Priority: jsii.Number(priority),
		// Count instead of the group's default block actions.
		OverrideAction: &awswafv2.CfnWebACL_OverrideActionProperty{
			Count: map[string]interface{}{},
		},
		Statement: &awswafv2.CfnWebACL_StatementProperty{
			ManagedRuleGroupStatement: &awswafv2.CfnWebACL_ManagedRuleGroupStatementProperty{
				VendorName: jsii.String("AWS"),
				Name:       jsii.String(name),
			},
		},
		VisibilityConfig: &awswafv2.CfnWebACL_VisibilityConfigProperty{
			SampledRequestsEnabled:   jsii.Bool(true),
			CloudWatchMetricsEnabled: jsii.Bool(true),
			MetricName:               jsii.String(metricPrefix + name),
		},
	}
}

// NewWebACL creates the ACL with the AWS common, known-bad-inputs, and IP
// reputation managed rule groups plus a per-IP rate limit.
func NewWebACL(scope constructs.Construct, id string, props *WebACLProps) *WebACL {
	node := constructs.NewConstruct(scope, jsii.String(id))

	rateLimit := props.RateLimit
	if rateLimit == 0 {
		rateLimit = 2000
	}

	rules := []interface{}{
		managedRule("AWSManagedRulesCommonRuleSet", 10),
		managedRule("AWSManagedRulesKnownBadInputsRuleSet", 20),
		managedRule("AWSManagedRulesAmazonIpReputationList", 30),
		&awswafv2.CfnWebACL_RuleProperty{
			Name:     jsii.String("RateLimitPerIP"),
			Priority: jsii.Number(40),
			Action: &awswafv2.CfnWebACL_RuleActionProperty{
				Count: map[string]interface{}{},
			},
			Statement: &awswafv2.CfnWebACL_StatementProperty{
				RateBasedStatement: &awswafv2.CfnWebACL_RateBasedStatementProperty{
					Limit:            jsii.Number(rateLimit),
					AggregateKeyType: jsii.String("IP"),
				},
			},
			VisibilityConfig: &awswafv2.CfnWebACL_VisibilityConfigProperty{
				SampledRequestsEnabled:   jsii.Bool(true),
				CloudWatchMetricsEnabled: jsii.Bool(true),
				MetricName:               jsii.String(metricPrefix + "RateLimit"),
			},
		},
	}

	acl := awswafv2.NewCfnWebACL(node, jsii.String("ACL"), &awswafv2.CfnWebACLProps{
		Name:  jsii.String(props.Settings.QualifiedName("waf")),
		Scope: jsii.String("REGIONAL"),
		DefaultAction: &awswafv2.CfnWebACL_DefaultActionProperty{
			Allow: map[string]interface{}{},
		},
		VisibilityConfig: &awswafv2.CfnWebACL_VisibilityConfigProperty{
			SampledRequestsEnabled:   jsii.Bool(true),
			CloudWatchMetricsEnabled: jsii.Bool(true),
			MetricName:               jsii.String(metricPrefix + "WebACL"),
		},
		Rules: &rules,
	})

	return &WebACL{Construct: node, ACL: acl}
}

// Arn returns the ACL's ARN for association with the load balancer.
func (w *WebACL) Arn() *string {
	return w.ACL.AttrArn()
}
