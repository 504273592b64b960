// Package renderer produces the per-revision deployment artifacts CodeDeploy
// consumes: the appspec and the task definition JSON. They live as embedded
// .tmpl files rather than Go string literals so diffs against what a
// deployment actually shipped stay readable.
package renderer
