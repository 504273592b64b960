package renderer

// TemplateName is a known template filename under templates/.
type TemplateName string

const (
	TplAppSpec TemplateName = "appspec.yaml.tmpl"
	TplTaskDef TemplateName = "taskdef.json.tmpl"
)

// AppSpecData fills the CodeDeploy appspec for a blue/green ECS deployment.
// Hook fields are lambda function names; empty means the hook is omitted.
type AppSpecData struct {
	TaskDefinitionArn string
	ContainerName     string
	ContainerPort     int
	PreTrafficHook    string
	PostTrafficHook   string
}

// TaskDefData fills the task definition registered before each deployment.
// SortedEnvKeys fixes the iteration order so renders are deterministic.
type TaskDefData struct {
	Family           string
	CPU              int
	MemoryMiB        int
	ExecutionRoleArn string
	TaskRoleArn      string
	ContainerName    string
	ImageURI         string
	ContainerPort    int
	Region           string
	LogGroup         string
	EnvVars          map[string]string
	SortedEnvKeys    []string
}
