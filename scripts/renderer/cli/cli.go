// Command cli renders the CodeDeploy deployment artifacts (appspec.yaml and
// taskdef.json) for a given image, typically from CI right before calling
// create-deployment.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Simodalstix/AWS-fargate-golden-path/scripts/renderer"
)

func main() {
	family := flag.String("family", "golden-path-app-dev", "task definition family")
	image := flag.String("image", "", "container image URI (required)")
	taskDefArn := flag.String("taskdef-arn", "", "registered task definition ARN for the appspec (required)")
	execRole := flag.String("execution-role", "", "task execution role ARN")
	taskRole := flag.String("task-role", "", "task role ARN")
	region := flag.String("region", "us-east-1", "AWS region for the log configuration")
	logGroup := flag.String("log-group", "/ecs/golden-path-app-dev", "awslogs log group")
	cpu := flag.Int("cpu", 512, "task CPU units")
	memory := flag.Int("memory", 1024, "task memory in MiB")
	envFlag := flag.String("env", "", "container environment, NAME=value pairs separated by commas")
	preHook := flag.String("pre-hook", "", "BeforeAllowTraffic lambda name")
	postHook := flag.String("post-hook", "", "AfterAllowTraffic lambda name")
	outDir := flag.String("out", ".", "output directory")
	flag.Parse()

	if *image == "" || *taskDefArn == "" {
		fmt.Println("both -image and -taskdef-arn are required")
		os.Exit(1)
	}

	envVars := map[string]string{}
	if *envFlag != "" {
		for _, pair := range strings.Split(*envFlag, ",") {
			name, value, ok := strings.Cut(pair, "=")
			if !ok {
				fmt.Println("invalid -env entry:", pair)
				os.Exit(1)
			}
			envVars[name] = value
		}
	}
	keys := make([]string, 0, len(envVars))
	for k := range envVars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	taskDef, err := renderer.Render(renderer.TplTaskDef, renderer.TaskDefData{
		Family:           *family,
		CPU:              *cpu,
		MemoryMiB:        *memory,
		ExecutionRoleArn: *execRole,
		TaskRoleArn:      *taskRole,
		ContainerName:    "app",
		ImageURI:         *image,
		ContainerPort:    80,
		Region:           *region,
		LogGroup:         *logGroup,
		EnvVars:          envVars,
		SortedEnvKeys:    keys,
	})
	if err != nil {
		fmt.Println("rendering taskdef:", err)
		os.Exit(1)
	}

	appSpec, err := renderer.Render(renderer.TplAppSpec, renderer.AppSpecData{
		TaskDefinitionArn: *taskDefArn,
		ContainerName:     "app",
		ContainerPort:     80,
		PreTrafficHook:    *preHook,
		PostTrafficHook:   *postHook,
	})
	if err != nil {
		fmt.Println("rendering appspec:", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*outDir+"/taskdef.json", []byte(taskDef), 0o644); err != nil {
		fmt.Println("writing taskdef.json:", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*outDir+"/appspec.yaml", []byte(appSpec), 0o644); err != nil {
		fmt.Println("writing appspec.yaml:", err)
		os.Exit(1)
	}
	fmt.Println("wrote", *outDir+"/taskdef.json", "and", *outDir+"/appspec.yaml")
}
