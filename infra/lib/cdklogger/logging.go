// Package cdklogger reports synth-time decisions through CDK annotations so
// they show up in `cdk synth` / `cdk deploy` output next to the stack that
// made them.
package cdklogger

import (
	"fmt"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// LogInfo adds an INFO annotation to the scope. constructID is prepended as
// a "[Name]" prefix unless the scope's path already ends with it.
func LogInfo(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddInfo(jsii.String(prefixed(scope, constructID, format, args...)))
}

// LogWarning adds a WARNING annotation to the scope.
func LogWarning(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddWarning(jsii.String(prefixed(scope, constructID, format, args...)))
}

// LogError adds an ERROR annotation to the scope. Errors fail the synth.
func LogError(scope constructs.Construct, constructID string, format string, args ...interface{}) {
	awscdk.Annotations_Of(scope).AddError(jsii.String(prefixed(scope, constructID, format, args...)))
}

func prefixed(scope constructs.Construct, constructID string, format string, args ...interface{}) string {
	message := fmt.Sprintf(format, args...)
	if constructID == "" {
		return message
	}
	path := *scope.Node().Path()
	if strings.HasSuffix(path, "/"+constructID) || path == constructID {
		return message
	}
	return fmt.Sprintf("[%s] %s", constructID, message)
}
