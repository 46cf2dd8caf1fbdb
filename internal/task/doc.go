// Package task is the task-store collaborator used by TASK_CREATE routine
// steps. Tasks are created here and owned by the wider task CRUD surface.
package task
