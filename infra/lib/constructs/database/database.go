// Package database provisions the relational store behind /db. Three engines
// are supported so the lab can compare failure behavior: Aurora Serverless v2
// (the default, and the only one the failover experiment works against) and
// single-instance PostgreSQL or MySQL.
package database

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsrds"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssecretsmanager"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/Simodalstix/AWS-fargate-golden-path/infra/config"
	"github.com/Simodalstix/AWS-fargate-golden-path/infra/lib/cdklogger"
)

const (
	adminUser = "dbadmin"
	dbName    = "appdb"
	// Characters Secrets Manager may not put in a password that has to
	// survive being templated into a connection string.
	excludedPasswordChars = "\"@/\\ '"
)

type DatabaseProps struct {
	Settings config.Settings
	Vpc      awsec2.IVpc
	// AppSecurityGroup is granted ingress on the database port.
	AppSecurityGroup awsec2.ISecurityGroup
}

// Database wraps whichever engine was provisioned behind a single surface so
// the stacks above it never branch on the engine.
type Database struct {
	constructs.Construct

	Secret awssecretsmanager.ISecret

	cluster  awsrds.DatabaseCluster
	instance awsrds.DatabaseInstance
}

// NewDatabase provisions the engine selected in Settings.
func NewDatabase(scope constructs.Construct, id string, props *DatabaseProps) *Database {
	node := constructs.NewConstruct(scope, jsii.String(id))
	db := &Database{Construct: node}

	creds := awsrds.Credentials_FromGeneratedSecret(jsii.String(adminUser),
		&awsrds.CredentialsBaseOptions{
			SecretName:        jsii.String(props.Settings.QualifiedName("db-credentials")),
			ExcludeCharacters: jsii.String(excludedPasswordChars),
		})

	subnets := &awsec2.SubnetSelection{
		SubnetGroupName: jsii.String("data"),
	}

	switch props.Settings.DBEngine {
	case config.EngineAuroraPostgres:
		db.cluster = awsrds.NewDatabaseCluster(node, jsii.String("Cluster"), &awsrds.DatabaseClusterProps{
			Engine: awsrds.DatabaseClusterEngine_AuroraPostgres(&awsrds.AuroraPostgresClusterEngineProps{
				Version: awsrds.AuroraPostgresEngineVersion_VER_16_4(),
			}),
			Credentials:         creds,
			DefaultDatabaseName: jsii.String(dbName),
			Vpc:                 props.Vpc,
			VpcSubnets:          subnets,
			ServerlessV2MinCapacity: jsii.Number(props.Settings.MinACU),
			ServerlessV2MaxCapacity: jsii.Number(props.Settings.MaxACU),
			Writer: awsrds.ClusterInstance_ServerlessV2(jsii.String("writer"), nil),
			Readers: &[]awsrds.IClusterInstance{
				// A reader makes the failover experiment meaningful: without
				// one, failover has nowhere to promote.
				awsrds.ClusterInstance_ServerlessV2(jsii.String("reader"),
					&awsrds.ServerlessV2ClusterInstanceProps{
						ScaleWithWriter: jsii.Bool(true),
					}),
			},
			RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
		})
		db.cluster.Connections().AllowDefaultPortFrom(props.AppSecurityGroup,
			jsii.String("service tasks"))
		db.Secret = db.cluster.Secret()

	case config.EnginePostgres:
		db.instance = awsrds.NewDatabaseInstance(node, jsii.String("Instance"), &awsrds.DatabaseInstanceProps{
			Engine: awsrds.DatabaseInstanceEngine_Postgres(&awsrds.PostgresInstanceEngineProps{
				Version: awsrds.PostgresEngineVersion_VER_16_4(),
			}),
			Credentials:      creds,
			DatabaseName:     jsii.String(dbName),
			Vpc:              props.Vpc,
			VpcSubnets:       subnets,
			InstanceType:     instanceType(),
			AllocatedStorage: jsii.Number(20),
			MultiAz:          jsii.Bool(false),
			RemovalPolicy:    awscdk.RemovalPolicy_DESTROY,
		})
		db.instance.Connections().AllowDefaultPortFrom(props.AppSecurityGroup,
			jsii.String("service tasks"))
		db.Secret = db.instance.Secret()

	case config.EngineMySQL:
		db.instance = awsrds.NewDatabaseInstance(node, jsii.String("Instance"), &awsrds.DatabaseInstanceProps{
			Engine: awsrds.DatabaseInstanceEngine_Mysql(&awsrds.MySqlInstanceEngineProps{
				Version: awsrds.MysqlEngineVersion_VER_8_0_39(),
			}),
			Credentials:      creds,
			DatabaseName:     jsii.String(dbName),
			Vpc:              props.Vpc,
			VpcSubnets:       subnets,
			InstanceType:     instanceType(),
			AllocatedStorage: jsii.Number(20),
			MultiAz:          jsii.Bool(false),
			RemovalPolicy:    awscdk.RemovalPolicy_DESTROY,
		})
		db.instance.Connections().AllowDefaultPortFrom(props.AppSecurityGroup,
			jsii.String("service tasks"))
		db.Secret = db.instance.Secret()
	}

	if props.Settings.RotateSecrets {
		db.addRotation()
	}

	cdklogger.LogInfo(node, "", "database engine: %s", props.Settings.DBEngine)
	return db
}

func instanceType() awsec2.InstanceType {
	return awsec2.InstanceType_Of(awsec2.InstanceClass_BURSTABLE4_GRAVITON, awsec2.InstanceSize_MICRO)
}

func (db *Database) addRotation() {
	if db.cluster != nil {
		db.cluster.AddRotationSingleUser(&awsrds.RotationSingleUserOptions{
			AutomaticallyAfter: awscdk.Duration_Days(jsii.Number(30)),
		})
		return
	}
	db.instance.AddRotationSingleUser(&awsrds.RotationSingleUserOptions{
		AutomaticallyAfter: awscdk.Duration_Days(jsii.Number(30)),
	})
}

// IsCluster reports whether the engine is Aurora. The failover experiment
// only exists for clusters.
func (db *Database) IsCluster() bool {
	return db.cluster != nil
}

// EndpointHostname is the writer endpoint.
func (db *Database) EndpointHostname() *string {
	if db.cluster != nil {
		return db.cluster.ClusterEndpoint().Hostname()
	}
	return db.instance.DbInstanceEndpointAddress()
}

// ClusterArn returns the Aurora cluster ARN, or nil for instance engines.
func (db *Database) ClusterArn() *string {
	if db.cluster == nil {
		return nil
	}
	stack := awscdk.Stack_Of(db.Construct)
	return stack.FormatArn(&awscdk.ArnComponents{
		Service:      jsii.String("rds"),
		Resource:     jsii.String("cluster"),
		ResourceName: db.cluster.ClusterIdentifier(),
		ArnFormat:    awscdk.ArnFormat_COLON_RESOURCE_NAME,
	})
}

func (db *Database) metric(name, statistic string) awscloudwatch.Metric {
	dims := map[string]*string{}
	if db.cluster != nil {
		dims["DBClusterIdentifier"] = db.cluster.ClusterIdentifier()
	} else {
		dims["DBInstanceIdentifier"] = db.instance.InstanceIdentifier()
	}
	return awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
		Namespace:     jsii.String("AWS/RDS"),
		MetricName:    jsii.String(name),
		Statistic:     jsii.String(statistic),
		Period:        awscdk.Duration_Minutes(jsii.Number(5)),
		DimensionsMap: &dims,
	})
}

// MetricCPU is CPUUtilization in percent.
func (db *Database) MetricCPU() awscloudwatch.Metric {
	return db.metric("CPUUtilization", "Average")
}

// MetricConnections is the DatabaseConnections count.
func (db *Database) MetricConnections() awscloudwatch.Metric {
	return db.metric("DatabaseConnections", "Average")
}

// MetricFreeStorage is FreeStorageSpace in bytes, nil for Aurora, which has
// no fixed allocation.
func (db *Database) MetricFreeStorage() awscloudwatch.IMetric {
	if db.cluster != nil {
		return nil
	}
	return db.metric("FreeStorageSpace", "Minimum")
}
